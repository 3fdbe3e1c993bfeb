package worker

// scheduler.go
// Single cooperative loop over a min-heap of (next fire time, job). Due jobs
// run to completion on the loop, one at a time, then are rescheduled from the
// time the run finished. A slow run delays later jobs but never skips them.

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"wavyai/internal/infra"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Schedule cron.Schedule
	Run      func(ctx context.Context) error
}

type entry struct {
	job  Job
	next time.Time
	seq  int // insertion order breaks ties
}

type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].next.Equal(h[j].next) {
		return h[i].seq < h[j].seq
	}
	return h[i].next.Before(h[j].next)
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)   { *h = append(*h, x.(*entry)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Scheduler is not safe for concurrent use; Run owns it.
type Scheduler struct {
	queue   jobHeap
	poll    time.Duration
	metrics *infra.Metrics
	now     func() time.Time
	seq     int
}

// NewScheduler registers jobs so that every one of them is due immediately.
func NewScheduler(poll time.Duration, metrics *infra.Metrics, jobs ...Job) *Scheduler {
	if poll <= 0 {
		poll = 30 * time.Second
	}
	s := &Scheduler{poll: poll, metrics: metrics, now: time.Now}
	for _, j := range jobs {
		s.add(j, time.Time{})
	}
	return s
}

func (s *Scheduler) add(j Job, at time.Time) {
	s.seq++
	heap.Push(&s.queue, &entry{job: j, next: at, seq: s.seq})
}

// Start runs the loop in a background goroutine until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Int("jobs", s.queue.Len()).Dur("poll", s.poll).Msg("scheduler: started")
	s.runDue(ctx)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler: shutting down")
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue executes every job whose fire time has passed and returns how many ran.
func (s *Scheduler) runDue(ctx context.Context) int {
	ran := 0
	for s.queue.Len() > 0 && ctx.Err() == nil {
		head := s.queue[0]
		if head.next.After(s.now()) {
			break
		}
		heap.Pop(&s.queue)
		s.execute(ctx, head.job)
		ran++
		next := head.job.Schedule.Next(s.now())
		s.add(head.job, next)
		log.Debug().Str("job", head.job.Name).Time("next", next).Msg("scheduler: rescheduled")
	}
	return ran
}

func (s *Scheduler) execute(ctx context.Context, j Job) {
	start := s.now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			log.Error().Str("job", j.Name).Str("panic", fmt.Sprint(r)).Msg("scheduler: job panicked")
		}
		took := s.now().Sub(start)
		s.metrics.JobRun(j.Name, result, took)
		log.Info().Str("job", j.Name).Str("result", result).Dur("took", took).Msg("scheduler: job finished")
	}()

	if err := j.Run(ctx); err != nil {
		result = "error"
		log.Error().Err(err).Str("job", j.Name).Msg("scheduler: job failed")
	}
}

// NextRun reports when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, e := range s.queue {
		if e.job.Name == name {
			return e.next, true
		}
	}
	return time.Time{}, false
}

// Every is a fixed-interval schedule.
func Every(d time.Duration) cron.Schedule {
	return cron.Every(d)
}

// CronSchedule parses a standard five-field spec evaluated in loc. A CRON_TZ
// prefix in spec wins over loc.
func CronSchedule(spec string, loc *time.Location) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	if ss, ok := sched.(*cron.SpecSchedule); ok && loc != nil && ss.Location == time.Local {
		ss.Location = loc
	}
	return sched, nil
}
