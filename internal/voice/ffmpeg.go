package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// Source opens a URL as raw s16le stereo PCM at 48kHz.
type Source interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// FFmpeg decodes URLs with an ffmpeg subprocess.
type FFmpeg struct {
	Path string
	Log  *logrus.Entry
}

// Open starts ffmpeg reading url. Closing the reader kills the process.
func (f FFmpeg) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	path := f.Path
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, path,
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-vn",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	if f.Log != nil {
		go func() {
			sc := bufio.NewScanner(stderr)
			for sc.Scan() {
				f.Log.WithField("component", "ffmpeg").Debug(sc.Text())
			}
		}()
	} else {
		go func() { _, _ = io.Copy(io.Discard, stderr) }()
	}

	return &process{ReadCloser: stdout, cmd: cmd}, nil
}

type process struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *process) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.ReadCloser.Close()
	_ = p.cmd.Wait()
	return nil
}
