// Package audit implements the three durable sinks every session writes
// to: per-module JSONL event logs, a unified human-readable workflow log,
// and a crash-safe session.json metrics document.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/0xDexFi/veilcams/internal/concurrency"
	"github.com/0xDexFi/veilcams/internal/domain"
)

// Session owns the three audit sinks for one run, rooted at dir.
type Session struct {
	dir      string
	lock     *concurrency.FileLock
	workflow *os.File
	wfMu     sync.Mutex
}

// NewSession creates the session directory layout (agents/, deliverables/)
// under dir and opens the unified workflow log for appending.
func NewSession(dir string) (*Session, error) {
	if err := os.MkdirAll(filepath.Join(dir, "agents"), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create agents dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "deliverables"), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create deliverables dir: %w", err)
	}

	wf, err := os.OpenFile(filepath.Join(dir, "workflow.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open workflow.log: %w", err)
	}

	return &Session{
		dir:      dir,
		lock:     concurrency.NewFileLock(filepath.Join(dir, "session.json.lock")),
		workflow: wf,
	}, nil
}

// Close releases the workflow log file handle.
func (s *Session) Close() error {
	return s.workflow.Close()
}

// Dir returns the session's root directory.
func (s *Session) Dir() string { return s.dir }

// ModuleEventLog is an append-only, crash-consistent JSONL log for one
// module attempt.
type ModuleEventLog struct {
	f *os.File
}

// ModuleLog opens (creating if necessary) the event log for
// agents/<module>_attempt_<n>.jsonl.
func (s *Session) ModuleLog(module string, attempt int) (*ModuleEventLog, error) {
	path := filepath.Join(s.dir, "agents", fmt.Sprintf("%s_attempt_%d.jsonl", module, attempt))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open module log %s: %w", path, err)
	}
	return &ModuleEventLog{f: f}, nil
}

// moduleEvent is the record written per line: {timestamp, module, event, data}.
type moduleEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	Module    string      `json:"module"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
}

// Record appends one JSON event line and immediately flushes and fsyncs
// it, so a crash mid-module leaves a consistent truncation boundary.
func (m *ModuleEventLog) Record(module, event string, data interface{}) error {
	line, err := json.Marshal(moduleEvent{Timestamp: time.Now().UTC(), Module: module, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	line = append(line, '\n')
	if _, err := m.f.Write(line); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("audit: fsync event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (m *ModuleEventLog) Close() error { return m.f.Close() }

// WorkflowLogf appends a human-readable, key=value-annotated line to
// workflow.log, and mirrors it through logrus for operators tailing
// stderr.
func (s *Session) WorkflowLogf(format string, args ...interface{}) {
	s.wfMu.Lock()
	defer s.wfMu.Unlock()

	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), msg)
	if _, err := s.workflow.WriteString(line); err != nil {
		logrus.WithError(err).Warn("failed to append to workflow.log")
	}
	logrus.Info(msg)
}

// WriteDeliverable atomically writes v as JSON to
// deliverables/<name>.json: it's written to a temporary sibling file
// first, then renamed over the target so a reader never observes a
// partially written deliverable.
func (s *Session) WriteDeliverable(name string, v interface{}) error {
	path := filepath.Join(s.dir, "deliverables", name+".json")
	return atomicWriteJSON(path, v)
}

func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("audit: create temp file %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("audit: write temp file %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("audit: fsync temp file %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audit: close temp file %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		// Some filesystems refuse to rename over a file another process
		// holds open; fall back to copy-then-delete.
		if werr := os.WriteFile(path, data, 0o644); werr != nil {
			return fmt.Errorf("audit: rename %s->%s failed (%v), copy fallback also failed: %w", tmp, path, err, werr)
		}
		_ = os.Remove(tmp)
	}
	return nil
}

// UpdateMetrics acquires the session's file lock, reloads session.json
// (or starts a fresh document if absent), applies mutate, and atomically
// rewrites the file. Callers must keep mutate's work small: the critical
// section must stay short relative to the file lock's stale timeout.
func (s *Session) UpdateMetrics(mutate func(*domain.SessionMetrics)) error {
	release, err := s.lock.Lock()
	if err != nil {
		return fmt.Errorf("audit: acquire session lock: %w", err)
	}
	defer release()

	path := filepath.Join(s.dir, "session.json")
	metrics, err := loadMetrics(path)
	if err != nil {
		return err
	}

	mutate(metrics)

	return atomicWriteJSON(path, metrics)
}

func loadMetrics(path string) (*domain.SessionMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.SessionMetrics{Status: domain.SessionRunning}, nil
		}
		return nil, fmt.Errorf("audit: read %s: %w", path, err)
	}
	var m domain.SessionMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("audit: unmarshal %s: %w", path, err)
	}
	return &m, nil
}

// ReadMetrics reads the current session.json without acquiring the write
// lock; callers needing a point-in-time snapshot (e.g. progress queries)
// use this, since session.json is only ever the pre- or post-update state,
// never torn.
func (s *Session) ReadMetrics() (*domain.SessionMetrics, error) {
	return loadMetrics(filepath.Join(s.dir, "session.json"))
}
