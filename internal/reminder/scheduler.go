package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/websocket"
)

const dateLayout = "2006-01-02"

// GoalLister finds uncompleted goals with a deadline on or before a date.
type GoalLister interface {
	ListDueBy(ctx context.Context, date string) ([]model.Goal, error)
}

// Notifier delivers a message to the connections of msg.Owner.
type Notifier interface {
	NotifyOwner(ctx context.Context, msg websocket.Message)
}

// Deadline is the payload of a goal_deadline message.
type Deadline struct {
	Title     string  `json:"title"`
	Deadline  string  `json:"deadline"`
	DaysLeft  int     `json:"days_left"`
	Remaining float64 `json:"remaining"`
}

// Scheduler periodically reminds owners of goals whose deadline is near.
// Each goal is announced once per process run, or again if its deadline
// changes.
type Scheduler struct {
	mu       sync.RWMutex
	goals    GoalLister
	notifier Notifier
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger

	sent   map[int64]string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(goals GoalLister, notifier Notifier, interval, window time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		goals:    goals,
		notifier: notifier,
		interval: interval,
		window:   window,
		now:      time.Now,
		logger:   logger,
		sent:     make(map[int64]string),
	}
}

// Start runs one check immediately, then one per interval until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) int {
	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	horizon := now.Add(s.window).Format(dateLayout)

	goals, err := s.goals.ListDueBy(ctx, horizon)
	if err != nil {
		s.logger.Error("list due goals", "error", err)
		return 0
	}

	due := make(map[int64]bool, len(goals))
	for _, g := range goals {
		due[g.ID] = true
	}
	// Goals that were deleted, completed or moved out of the window are
	// forgotten, so a goal that comes back is announced again.
	for id := range s.sent {
		if !due[id] {
			delete(s.sent, id)
		}
	}

	notified := 0
	for _, g := range goals {
		if g.Deadline == nil || s.sent[g.ID] == *g.Deadline {
			continue
		}
		deadline, err := time.Parse(dateLayout, *g.Deadline)
		if err != nil {
			s.logger.Warn("bad goal deadline", "goal_id", g.ID, "deadline", *g.Deadline)
			continue
		}

		s.notifier.NotifyOwner(ctx, websocket.NewMessage("goal", "deadline", g.ID, g.UserID, Deadline{
			Title:     g.Title,
			Deadline:  *g.Deadline,
			DaysLeft:  int(deadline.Sub(today).Hours() / 24),
			Remaining: max(g.TargetAmount-g.CurrentAmount, 0),
		}))
		s.sent[g.ID] = *g.Deadline
		notified++
	}
	if notified > 0 {
		s.logger.Info("sent goal reminders", "count", notified)
	}
	return notified
}
