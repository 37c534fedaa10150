package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kitcasinillo/backend-server/config"
	"github.com/kitcasinillo/backend-server/internal/notify"
	"github.com/kitcasinillo/backend-server/internal/reminder"
)

type NotificationRunner interface {
	ProcessAll(ctx context.Context) notify.Result
}

type ReminderRunner interface {
	Run(ctx context.Context) reminder.Result
}

type TaskStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

type Status struct {
	Running bool         `json:"running"`
	Tasks   []TaskStatus `json:"tasks"`
}

// Orchestrator owns the periodic jobs: the unread-message digest sweep and
// the session reminder sweep. Ticks fire the job in its own goroutine with a
// background context, so Stop halts future ticks without aborting a sweep
// already in flight. Jobs are written to tolerate overlapping runs.
type Orchestrator struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	notifications NotificationRunner
	reminders     ReminderRunner
	notifyCfg     config.NotificationsConfig
	remindCfg     config.RemindersConfig
}

func NewOrchestrator(notifications NotificationRunner, reminders ReminderRunner, notifyCfg config.NotificationsConfig, remindCfg config.RemindersConfig) *Orchestrator {
	return &Orchestrator{
		notifications: notifications,
		reminders:     reminders,
		notifyCfg:     notifyCfg,
		remindCfg:     remindCfg,
	}
}

// Start launches the ticker loops. Calling Start on a running orchestrator
// is a no-op.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		log.Printf("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.running = true

	notifyEvery := time.Duration(o.notifyCfg.IntervalHours) * time.Hour
	o.wg.Add(1)
	go o.loop(ctx, notifyEvery, func(jobCtx context.Context) {
		o.notifications.ProcessAll(jobCtx)
	})
	log.Printf("scheduled unread notifications every %dh", o.notifyCfg.IntervalHours)

	if o.remindCfg.IsEnabled() {
		remindEvery := time.Duration(o.remindCfg.PollIntervalMinutes) * time.Minute
		o.wg.Add(1)
		go o.loop(ctx, remindEvery, func(jobCtx context.Context) {
			o.reminders.Run(jobCtx)
		})
		log.Printf("scheduled session reminders every %dm", o.remindCfg.PollIntervalMinutes)
	} else {
		log.Printf("session reminders disabled, not scheduling")
	}
}

func (o *Orchestrator) loop(ctx context.Context, every time.Duration, job func(context.Context)) {
	defer o.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A long sweep must not delay the next tick of the other task,
			// so each run gets its own goroutine and context.
			go job(context.Background())
		}
	}
}

// Stop cancels the ticker loops. Sweeps already in flight run to completion.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	o.cancel()
	o.wg.Wait()
	o.running = false
	o.cancel = nil
	log.Printf("scheduler stopped")
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	tasks := []TaskStatus{
		{Name: "unread-notifications", Running: o.running},
		{Name: "session-reminders", Running: o.running && o.remindCfg.IsEnabled()},
	}
	return Status{Running: o.running, Tasks: tasks}
}

// RunNotifications triggers one digest sweep outside the schedule.
func (o *Orchestrator) RunNotifications(ctx context.Context) notify.Result {
	start := time.Now()
	result := o.notifications.ProcessAll(ctx)
	log.Printf("manual notification sweep finished in %s", time.Since(start).Round(time.Millisecond))
	return result
}

// RunReminders triggers one reminder sweep outside the schedule.
func (o *Orchestrator) RunReminders(ctx context.Context) reminder.Result {
	start := time.Now()
	result := o.reminders.Run(ctx)
	log.Printf("manual reminder sweep finished in %s", time.Since(start).Round(time.Millisecond))
	return result
}
