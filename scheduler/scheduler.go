// Package scheduler implements the tick loop that drives scheduled_event
// nodes: once-off and repeating-interval tasks, each carrying a callback
// the runtime registers when a project deploys. Grounded step-for-step on
// the original implementation's scheduler.py.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/beezlebug/agentgraph/internal/logx"
)

// TriggerType distinguishes a task that fires once from one that repeats.
type TriggerType string

const (
	TriggerOnce     TriggerType = "once"
	TriggerInterval TriggerType = "interval"
)

// Callback is invoked when a task becomes due. The scheduler logs and
// swallows any error the callback returns rather than letting one failing
// task stop the tick loop.
type Callback func(ctx context.Context) error

// Task is a single scheduled unit of work.
type Task struct {
	ID              string
	AgentID         string
	Trigger         TriggerType
	Callback        Callback
	RunAt           time.Time     // ONCE
	IntervalSeconds float64       // INTERVAL
	LastRun         *time.Time
	Enabled         bool
	RunCount        int
}

// shouldRun mirrors ScheduledTask.should_run: a disabled task never runs;
// a ONCE task runs exactly once, at or after RunAt; an INTERVAL task runs
// when it has never run or the interval has elapsed since LastRun.
func (t *Task) shouldRun(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	switch t.Trigger {
	case TriggerOnce:
		return !t.RunAt.IsZero() && !now.Before(t.RunAt) && t.RunCount == 0
	case TriggerInterval:
		if t.LastRun == nil {
			return true
		}
		return now.Sub(*t.LastRun).Seconds() >= t.IntervalSeconds
	default:
		return false
	}
}

// Scheduler runs a single cooperative tick loop over every registered
// task, executing due tasks serially within a tick and catching/logging
// any callback error so the loop never stops.
type Scheduler struct {
	mu           sync.Mutex
	tasks        map[string]*Task
	tickInterval time.Duration
	log          logx.Logger
	lock         *DistLock

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a scheduler that polls every tickInterval (default 1s, as
// in the original, when zero).
func New(tickInterval time.Duration, log logx.Logger) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	if log == nil {
		log = logx.Default()
	}
	return &Scheduler{
		tasks:        make(map[string]*Task),
		tickInterval: tickInterval,
		log:          log,
	}
}

// Start launches the tick loop in a goroutine. Calling Start twice is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(runCtx)
}

// SetDistLock installs an optional cross-process lock: when set, tick only
// fires a due task on this instance if it wins the lock for that task id,
// so multiple runtime instances sharing a Redis deployment and the same
// storage DSN don't double-fire the same scheduled_event. Pass nil to go
// back to single-instance behavior (the default).
func (s *Scheduler) SetDistLock(lock *DistLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lock = lock
}

// Stop halts the tick loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick snapshots the task list, runs every due task serially, and
// catches any error so one broken task never halts the loop. When a
// DistLock is installed, a task this instance loses the lock race for is
// skipped this tick but still advances its own schedule, so this instance
// doesn't hammer the lock every tick waiting for the next interval.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	due := s.dueTasks(now)

	s.mu.Lock()
	lock := s.lock
	s.mu.Unlock()

	for _, t := range due {
		if lock != nil {
			release, ok, err := lock.Acquire(ctx, t.ID)
			if err != nil {
				s.log.Error("scheduled task %s: acquiring distributed lock: %v", t.ID, err)
			} else if !ok {
				s.advance(t, now)
				continue
			} else {
				if err := t.Callback(ctx); err != nil {
					s.log.Error("scheduled task %s failed: %v", t.ID, err)
				}
				release()
				s.advance(t, now)
				continue
			}
		}
		if err := t.Callback(ctx); err != nil {
			s.log.Error("scheduled task %s failed: %v", t.ID, err)
		}
		s.advance(t, now)
	}
}

func (s *Scheduler) advance(t *Task, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.RunCount++
	lastRun := now
	t.LastRun = &lastRun
	if t.Trigger == TriggerOnce {
		t.Enabled = false
	}
}

func (s *Scheduler) dueTasks(now time.Time) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*Task
	for _, t := range s.tasks {
		if t.shouldRun(now) {
			due = append(due, t)
		}
	}
	return due
}

// ScheduleOnce registers a task that fires exactly once at runAt.
func (s *Scheduler) ScheduleOnce(id, agentID string, runAt time.Time, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &Task{
		ID: id, AgentID: agentID, Trigger: TriggerOnce,
		Callback: cb, RunAt: runAt, Enabled: true,
	}
}

// ScheduleInterval registers a repeating task. When startImmediately is
// false (the default the runtime uses for scheduled_event nodes), LastRun
// seeds to now so the first fire waits a full interval; when true,
// LastRun stays nil so the first tick fires it immediately.
func (s *Scheduler) ScheduleInterval(id, agentID string, intervalSeconds float64, startImmediately bool, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Task{
		ID: id, AgentID: agentID, Trigger: TriggerInterval,
		Callback: cb, IntervalSeconds: intervalSeconds, Enabled: true,
	}
	if !startImmediately {
		now := time.Now()
		t.LastRun = &now
	}
	s.tasks[id] = t
}

// CancelTask removes a task entirely.
func (s *Scheduler) CancelTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// PauseTask disables a task without removing it.
func (s *Scheduler) PauseTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Enabled = false
	}
}

// ResumeTask re-enables a previously paused task.
func (s *Scheduler) ResumeTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Enabled = true
	}
}

// TasksForAgent returns every task belonging to agentID.
func (s *Scheduler) TasksForAgent(agentID string) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Task
	for _, t := range s.tasks {
		if t.AgentID == agentID {
			out = append(out, t)
		}
	}
	return out
}

// ClearAgentTasks removes every task belonging to agentID.
func (s *Scheduler) ClearAgentTasks(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if t.AgentID == agentID {
			delete(s.tasks, id)
		}
	}
}
