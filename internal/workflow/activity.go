package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/0xDexFi/veilcams/internal/domain"
)

// runActivity executes fn as one activity: it emits heartbeats, bounds
// total runtime to activityStartToClose, retries retryable failures with
// exponential backoff, and records the module's status transitions in
// session.json. Non-retryable error kinds (configuration, permission,
// invalid target) return immediately on the first attempt.
func runActivity[T any](ctx context.Context, e *Engine, name, phase string, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	e.setModuleStatus(name, phase, domain.ModuleRunning, nil)
	e.Audit.WorkflowLogf("phase=%s module=%s status=running", phase, name)

	actCtx, cancel := context.WithTimeout(ctx, activityStartToClose)
	defer cancel()

	stopHeartbeat := e.startHeartbeat(actCtx, name)
	defer stopHeartbeat()

	var lastErr error
	backoff := policy.InitialBackoff

	for attempt := 1; attempt <= maxInt(policy.MaxAttempts, 1); attempt++ {
		v, err := fn(actCtx)
		if err == nil {
			e.setModuleStatus(name, phase, domain.ModuleCompleted, nil)
			e.Audit.WorkflowLogf("phase=%s module=%s status=completed attempt=%d", phase, name, attempt)
			return v, nil
		}

		lastErr = err
		kind := KindOf(err)
		e.Audit.WorkflowLogf("phase=%s module=%s attempt=%d kind=%s error=%q", phase, name, attempt, kind, err.Error())

		if kind.Terminal() || !kind.Retryable() || attempt == policy.MaxAttempts {
			break
		}

		timedOut := false
		select {
		case <-actCtx.Done():
			lastErr = actCtx.Err()
			timedOut = true
		case <-time.After(backoff):
		}
		if timedOut {
			break
		}
		backoff = minDuration(time.Duration(float64(backoff)*policy.BackoffMultiplier), policy.MaxBackoff)
	}

	e.setModuleStatus(name, phase, domain.ModuleFailed, lastErr)
	e.Audit.WorkflowLogf("phase=%s module=%s status=failed error=%q", phase, name, errString(lastErr))
	var zero T
	return zero, lastErr
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// startHeartbeat emits a liveness line to workflow.log every
// heartbeatInterval until the returned stop function is called. This is
// the activity's outward liveness signal; runActivity's own
// activityStartToClose timeout is the backstop against a hung activity
// that stops progressing but keeps its heartbeat goroutine alive.
func (e *Engine) startHeartbeat(ctx context.Context, name string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Audit.WorkflowLogf("heartbeat module=%s", name)
			}
		}
	}()
	return func() { close(done) }
}

// --- progress & metrics bookkeeping ---

func (e *Engine) initMetrics() {
	_ = e.Audit.UpdateMetrics(func(m *domain.SessionMetrics) {
		m.SessionID = e.Config.SessionID
		m.Start = e.progress.StartTime
		m.Status = domain.SessionRunning
	})
}

func (e *Engine) setPhase(phase, module string) {
	e.mu.Lock()
	e.progress.CurrentPhase = phase
	e.progress.CurrentModule = module
	e.mu.Unlock()
	e.Audit.WorkflowLogf("phase=%s transition", phase)
}

func (e *Engine) setCurrentModule(module string) {
	e.mu.Lock()
	e.progress.CurrentModule = module
	e.mu.Unlock()
}

func (e *Engine) setModuleStatus(name, phase string, status domain.ModuleStatus, cause error) {
	now := time.Now().UTC()

	e.mu.Lock()
	switch status {
	case domain.ModuleCompleted:
		e.completed = append(e.completed, name)
	case domain.ModuleFailed:
		e.failed = append(e.failed, name)
	}
	e.mu.Unlock()

	_ = e.Audit.UpdateMetrics(func(m *domain.SessionMetrics) {
		existing, _ := m.ModuleByName(name)
		metric := domain.ModuleMetric{
			Name:    name,
			Phase:   phase,
			Status:  status,
			Attempt: existing.Attempt + 1,
		}
		if status == domain.ModuleRunning {
			metric.Start = &now
		} else {
			metric.Start = existing.Start
			metric.End = &now
			if metric.Start != nil {
				metric.Duration = now.Sub(*metric.Start)
			}
		}
		if cause != nil {
			metric.Error = cause.Error()
		}
		m.UpsertModule(metric)
	})
}

func (e *Engine) failSession(err error) {
	e.setPhase(PhaseFailed, "")
	_ = e.Audit.UpdateMetrics(func(m *domain.SessionMetrics) {
		now := time.Now().UTC()
		m.End = &now
		m.Status = domain.SessionFailed
	})
	e.Audit.WorkflowLogf("session failed: %v", err)
}

func (e *Engine) completeSession(summary domain.SessionSummary) {
	e.setPhase(PhaseCompleted, "")
	_ = e.Audit.UpdateMetrics(func(m *domain.SessionMetrics) {
		now := time.Now().UTC()
		m.End = &now
		m.Status = domain.SessionCompleted
		m.Summary = summary
	})
}

// GetProgress is the workflow's read-only progress query: it is free of
// side effects and safe to invoke at any time, including concurrently
// with an in-flight run.
func (e *Engine) GetProgress() domain.ProgressRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := domain.ProgressRecord{
		CurrentPhase:     e.progress.CurrentPhase,
		CurrentModule:    e.progress.CurrentModule,
		CompletedModules: append([]string{}, e.completed...),
		FailedModules:    append([]string{}, e.failed...),
		StartTime:        e.progress.StartTime,
		ElapsedMs:        time.Since(e.progress.StartTime).Milliseconds(),
	}
	return p
}

// writePlaceholderReport satisfies the session directory layout's
// presence invariant for deliverables/security_assessment_report.md. The
// real Markdown formatter is an external collaborator; this only
// guarantees the path exists with a minimal, valid summary so "the final
// report always generates (even on empty discovery)" holds for the core
// in isolation.
func writePlaceholderReport(dir string, result Result) error {
	path := dir + "/deliverables/security_assessment_report.md"
	content := fmt.Sprintf("# Security Assessment Report\n\nHosts discovered: %d\nHosts fingerprinted: %d\nCredential findings: %d\nVulnerabilities: %d\nProtocol findings: %d\n",
		len(result.Discovery.Hosts), len(result.Fingerprints), result.Credentials.SuccessfulLogins, result.CVEs.VulnerableCount, len(result.Findings.Findings))
	return writeFile(path, content)
}
