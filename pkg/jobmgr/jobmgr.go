// Package jobmgr runs named background jobs bound to a parent context.
//
//	jm := jobmgr.NewManager(ctx, log)
//	_ = jm.Start("socket", socket.Run)
//	...
//	_ = jm.Stop("socket")
//	jm.Wait()
//
// A job runs until its runner returns or its context is cancelled, either by
// Stop or by the parent. Finished jobs are forgotten automatically.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner is the body of a job.
type Runner func(ctx context.Context) error

type job struct {
	id     uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager starts, stops and tracks jobs. It is safe for concurrent use.
type Manager struct {
	parent context.Context
	log    *logrus.Entry

	mu     sync.Mutex
	jobs   map[string]*job
	nextID uint64
	wg     sync.WaitGroup
}

// NewManager creates a manager whose jobs end when parent is done.
func NewManager(parent context.Context, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		parent: parent,
		log:    log.WithField("component", "jobs"),
		jobs:   make(map[string]*job),
	}
}

// Start runs runner in its own goroutine. It fails if a job with the same
// name is still running.
func (m *Manager) Start(name string, runner Runner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job %q is already running", name)
	}
	if err := m.parent.Err(); err != nil {
		return fmt.Errorf("job %q not started: %w", name, err)
	}

	ctx, cancel := context.WithCancel(m.parent)
	m.nextID++
	j := &job{id: m.nextID, cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer close(j.done)
		defer cancel()

		log := m.log.WithField("job", name)
		log.Debug("Job running")
		err := runner(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			log.Debug("Job done")
		default:
			log.WithError(err).Error("Job failed")
		}

		m.mu.Lock()
		if cur, ok := m.jobs[name]; ok && cur.id == j.id {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %q not running", name)
	}
	j.cancel()
	<-j.done
	return nil
}

// Running reports whether name is running.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the names of running jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a one-line summary of running jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(active, ", ")
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
