// Package jellyfin talks to a Jellyfin server: catalog lookups, stream URLs,
// play-state reports and the remote-control websocket.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jellycord/internal/metrics"
	"jellycord/pkg/retrylimit"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when the server does not know an item.
var ErrNotFound = errors.New("jellyfin: item not found")

const (
	defaultClientName = "jellycord"
	clientVersion     = "1.0.0"
	itemCacheSize     = 512
)

// Options configures a Client.
type Options struct {
	URL         string
	Token       string
	UserID      string
	DeviceID    string
	DeviceName  string
	ClientName  string
	MaxBitrate  int
	RequestRate float64
	CacheTTL    time.Duration
	HTTPClient  *http.Client
	Log         *logrus.Entry
}

// Client is a Jellyfin REST client scoped to one user.
type Client struct {
	base       *url.URL
	token      string
	userID     string
	deviceID   string
	deviceName string
	clientName string
	maxBitrate int

	http    *http.Client
	limiter *retrylimit.AdaptiveLimiter
	policy  retrylimit.Policy
	items   *expirable.LRU[string, Item]
	log     *logrus.Entry
}

// New creates a client. URL, Token and UserID are required.
func New(opts Options) (*Client, error) {
	if opts.URL == "" || opts.Token == "" || opts.UserID == "" {
		return nil, errors.New("jellyfin: url, token and user id are required")
	}
	base, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("jellyfin: invalid url: %w", err)
	}

	if opts.ClientName == "" {
		opts.ClientName = defaultClientName
	}
	if opts.DeviceName == "" {
		opts.DeviceName = opts.ClientName
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.RequestRate <= 0 {
		opts.RequestRate = 10
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	log := opts.Log.WithField("component", "jellyfin")

	policy := retrylimit.DefaultPolicy()
	policy.Log = log

	r := rate.Limit(opts.RequestRate)
	return &Client{
		base:       base,
		token:      opts.Token,
		userID:     opts.UserID,
		deviceID:   opts.DeviceID,
		deviceName: opts.DeviceName,
		clientName: opts.ClientName,
		maxBitrate: opts.MaxBitrate,
		http:       opts.HTTPClient,
		limiter:    retrylimit.NewAdaptiveLimiter(r, 1, r*2, 0.5, 0.5),
		policy:     policy,
		items:      expirable.NewLRU[string, Item](itemCacheSize, nil, opts.CacheTTL),
		log:        log,
	}, nil
}

// DeviceID identifies this bot towards the server.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// authorization builds the MediaBrowser header Jellyfin expects on every
// request.
func (c *Client) authorization() string {
	return fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s", Token="%s"`,
		c.clientName, c.deviceName, c.deviceID, clientVersion, c.token)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends a request through the limiter and decodes a JSON response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
	}

	start := time.Now()
	err := retrylimit.Do(ctx, c.limiter, c.policy, func() error {
		return c.send(ctx, method, path, query, payload, out)
	})
	metrics.ObserveJellyfinRequest(method, metricPath(path), err, time.Since(start))

	var se *retrylimit.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return retrylimit.Fatal(err)
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retrylimit.Fatal(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retrylimit.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retrylimit.Fatal(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

// metricPath drops item ids from a path so metric labels stay bounded.
func metricPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if len(p) == 32 || (len(p) == 36 && strings.Count(p, "-") == 4) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
