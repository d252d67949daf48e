// Package notify sends the daily experiment reminder to each user's
// registered devices, once per user per calendar day.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sadopc/habitlab/internal/store"
	"github.com/sadopc/habitlab/internal/telemetry"
)

var (
	// ErrNoDevices is returned by SendTest when the user has no tokens.
	ErrNoDevices = errors.New("no registered devices")

	// ErrPermissionDenied is returned by Register after the user declined
	// notifications.
	ErrPermissionDenied = errors.New("notification permission denied")
)

// Store is the persistence the dispatcher needs. *store.Store implements it.
type Store interface {
	ListActiveExperiments(ctx context.Context, now time.Time) ([]store.Experiment, error)
	RegisterDeviceToken(ctx context.Context, userID, token string) error
	ListDeviceTokens(ctx context.Context, userID string) ([]store.DeviceToken, error)
	RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) (int, error)
	GetNotificationLog(ctx context.Context, id string) (*store.NotificationLog, error)
	PutNotificationLog(ctx context.Context, l *store.NotificationLog) error
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

var _ Store = (*store.Store)(nil)

type Options struct {
	Title         string
	Body          string
	URL           string
	RatePerSecond float64
	Burst         int
	Location      *time.Location
	Logger        *slog.Logger
	Metrics       *telemetry.Metrics
	Now           func() time.Time
}

type Dispatcher struct {
	store   Store
	sender  Sender
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewDispatcher(st Store, sender Sender, opts Options) *Dispatcher {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 10
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:   st,
		sender:  sender,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		logger:  logger.With("component", "notify"),
	}
}

// Register stores a device token for userID. It does nothing once the user
// has denied notifications; otherwise it marks permission as granted.
func (d *Dispatcher) Register(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return errors.New("user id and token are required")
	}
	perm, err := d.store.GetSetting(ctx, store.SettingNotificationPermission)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		d.logger.Error("read notification permission", "user_id", userID, "error", err)
		return fmt.Errorf("read permission: %w", err)
	}
	if perm == store.PermissionDenied {
		d.logger.Info("token not registered, permission denied", "user_id", userID)
		return ErrPermissionDenied
	}
	if err := d.store.RegisterDeviceToken(ctx, userID, token); err != nil {
		d.logger.Error("register device token", "user_id", userID, "error", err)
		return err
	}
	if err := d.store.SetSetting(ctx, store.SettingNotificationPermission, store.PermissionGranted); err != nil {
		return fmt.Errorf("record permission: %w", err)
	}
	d.logger.Info("device token registered", "user_id", userID)
	return nil
}

// SetPermission records the user's answer to the permission prompt.
func (d *Dispatcher) SetPermission(ctx context.Context, value string) error {
	switch value {
	case store.PermissionDefault, store.PermissionGranted, store.PermissionDenied:
	default:
		return fmt.Errorf("unknown permission %q", value)
	}
	return d.store.SetSetting(ctx, store.SettingNotificationPermission, value)
}

// Delivery is the outcome of sending one message to a user's devices.
type Delivery struct {
	UserID       string
	DeviceCount  int
	SuccessCount int
	Pruned       int
}

// Report summarizes one dispatcher pass.
type Report struct {
	Hour       int
	Due        int // experiments whose reminder hour is now
	Skipped    int // already notified today or no devices
	Deliveries []Delivery
}

// RunOnce notifies every user whose active experiment's reminder hour is
// the current hour and who was not notified yet today.
func (d *Dispatcher) RunOnce(ctx context.Context) (Report, error) {
	started := time.Now()
	defer func() { d.opts.Metrics.ObserveDispatch(time.Since(started).Seconds()) }()

	now := d.opts.Now().In(d.opts.Location)
	day := store.DayKey(now, d.opts.Location)
	report := Report{Hour: now.Hour()}

	experiments, err := d.store.ListActiveExperiments(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list active experiments: %w", err)
	}

	seen := make(map[string]bool)
	for _, e := range experiments {
		if seen[e.UserID] {
			d.logger.Warn("multiple active experiments, using the first", "user_id", e.UserID)
			continue
		}
		seen[e.UserID] = true

		hour, ok := store.ParseClockHour(e.NotificationTime)
		if !ok || hour != report.Hour {
			continue
		}
		report.Due++

		logID := store.NotificationLogID(e.UserID, day)
		prev, err := d.store.GetNotificationLog(ctx, logID)
		if err != nil {
			return report, err
		}
		if prev != nil {
			report.Skipped++
			continue
		}

		msg := Message{Title: d.opts.Title, Body: d.opts.Body, URL: d.opts.URL, ExperimentID: e.ID}
		delivery, err := d.deliver(ctx, e.UserID, msg)
		if err != nil {
			return report, err
		}
		if delivery.DeviceCount == 0 {
			report.Skipped++
			continue
		}
		report.Deliveries = append(report.Deliveries, delivery)

		err = d.store.PutNotificationLog(ctx, &store.NotificationLog{
			ID:           logID,
			UserID:       e.UserID,
			ExperimentID: e.ID,
			SentAt:       now,
			Success:      delivery.SuccessCount > 0,
			DeviceCount:  delivery.DeviceCount,
			SuccessCount: delivery.SuccessCount,
		})
		if err != nil {
			return report, err
		}
		d.logger.Info("reminder sent", "user_id", e.UserID, "experiment_id", e.ID,
			"device_count", delivery.DeviceCount, "success_count", delivery.SuccessCount)
	}
	return report, nil
}

// SendTest sends a test message to all of userID's devices.
func (d *Dispatcher) SendTest(ctx context.Context, userID string) (Delivery, error) {
	msg := Message{
		Title: "Test notification",
		Body:  "Notifications are working.",
		URL:   d.opts.URL,
	}
	delivery, err := d.deliver(ctx, userID, msg)
	if err != nil {
		return delivery, err
	}
	if delivery.DeviceCount == 0 {
		return delivery, ErrNoDevices
	}
	return delivery, nil
}

// deliver sends msg to every token of userID concurrently and prunes the
// tokens that are permanently invalid.
func (d *Dispatcher) deliver(ctx context.Context, userID string, msg Message) (Delivery, error) {
	delivery := Delivery{UserID: userID}
	tokens, err := d.store.ListDeviceTokens(ctx, userID)
	if err != nil {
		return delivery, fmt.Errorf("list device tokens: %w", err)
	}
	delivery.DeviceCount = len(tokens)
	if len(tokens) == 0 {
		return delivery, nil
	}

	var (
		mu      sync.Mutex
		invalid []string
		g       errgroup.Group
	)
	for _, t := range tokens {
		g.Go(func() error {
			err := d.limiter.Wait(ctx)
			if err == nil {
				err = d.sender.Send(ctx, t.Token, msg)
			}
			d.opts.Metrics.NotificationSent(err == nil)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				delivery.SuccessCount++
			case errors.Is(err, ErrInvalidToken):
				invalid = append(invalid, t.Token)
			default:
				d.logger.Warn("send failed", "user_id", userID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	if len(invalid) > 0 {
		n, err := d.store.RemoveDeviceTokens(ctx, userID, invalid)
		if err != nil {
			return delivery, fmt.Errorf("prune device tokens: %w", err)
		}
		delivery.Pruned = n
		d.opts.Metrics.TokensRemoved(n)
		d.logger.Info("pruned invalid tokens", "user_id", userID, "count", n)
	}
	return delivery, nil
}

// Run calls RunOnce at the top of every hour until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		wait := NextRun(d.opts.Now()).Sub(d.opts.Now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		report, err := d.RunOnce(ctx)
		if err != nil {
			d.logger.Error("dispatch failed", "error", err)
			continue
		}
		d.logger.Info("dispatch finished", "hour", report.Hour, "due", report.Due,
			"skipped", report.Skipped, "delivered", len(report.Deliveries))
	}
}

// NextRun is the next top of the hour strictly after now.
func NextRun(now time.Time) time.Time {
	return now.Truncate(time.Hour).Add(time.Hour)
}
