package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks. dt is the wall time
// since the task last ran (the interval on the first run), capped at the
// task's max step so a stalled process does not jump the simulation.
type TaskFn func(dt time.Duration)

// TaskInfo is a read-out of one registered task.
type TaskInfo struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	Paused     bool          `json:"paused"`
	Runs       int64         `json:"runs"`
	Panics     int64         `json:"panics"`
	LastRunDur time.Duration `json:"last_run"`
}

// Scheduler manages named periodic tasks, each on its own goroutine.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	logger *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type task struct {
	name     string
	interval time.Duration
	maxStep  time.Duration
	stopCh   chan struct{}
	paused   atomic.Bool
	runs     atomic.Int64
	panics   atomic.Int64
	lastDur  atomic.Int64
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tasks:  make(map[string]*task),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// AddTicker registers a task to run on a fixed interval, with dt capped at
// four intervals. If a task with the same name exists, it is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.AddTickerMaxStep(name, interval, 4*interval, fn)
}

// AddTickerMaxStep is AddTicker with an explicit cap on dt.
func (s *Scheduler) AddTickerMaxStep(name string, interval, maxStep time.Duration, fn TaskFn) {
	if maxStep < interval {
		maxStep = interval
	}
	t := &task{name: name, interval: interval, maxStep: maxStep, stopCh: make(chan struct{})}

	s.mu.Lock()
	if old, ok := s.tasks[name]; ok {
		close(old.stopCh)
	}
	s.tasks[name] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(t, fn)
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) loop(t *task, fn TaskFn) {
	defer s.wg.Done()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if t.paused.Load() {
				continue
			}
			if dt > t.maxStep {
				dt = t.maxStep
			}
			s.run(t, fn, dt)
		case <-t.stopCh:
			return
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) run(t *task, fn TaskFn, dt time.Duration) {
	start := time.Now()
	defer func() {
		t.lastDur.Store(int64(time.Since(start)))
		t.runs.Add(1)
		if r := recover(); r != nil {
			t.panics.Add(1)
			s.logger.Error("scheduler task panicked",
				zap.String("task", t.name),
				zap.Any("recover", r))
		}
	}()
	fn(dt)
}

// Pause suspends a task without removing it. It reports whether the task exists.
func (s *Scheduler) Pause(name string) bool { return s.setPaused(name, true) }

// Resume continues a paused task. It reports whether the task exists.
func (s *Scheduler) Resume(name string) bool { return s.setPaused(name, false) }

func (s *Scheduler) setPaused(name string, paused bool) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if ok {
		t.paused.Store(paused)
		s.logger.Info("scheduler task state", zap.String("name", name), zap.Bool("paused", paused))
	}
	return ok
}

// Remove stops and removes a task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		close(t.stopCh)
		delete(s.tasks, name)
	}
}

// Stop stops all tasks and waits for any running task to return.
func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.wg.Wait()
}

// Tasks returns a read-out of all registered tasks sorted by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskInfo{
			Name:       t.name,
			Interval:   t.interval,
			Paused:     t.paused.Load(),
			Runs:       t.runs.Load(),
			Panics:     t.panics.Load(),
			LastRunDur: time.Duration(t.lastDur.Load()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
