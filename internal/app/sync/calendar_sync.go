package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"spothire/internal/app/uow"
	domaincalendar "spothire/internal/domain/calendar"
	domainlocation "spothire/internal/domain/location"
)

var ErrSyncWorkerNotConfigured = errors.New("sync: worker missing dependencies")

// CalendarSyncWorker refreshes the blackout set of every calendar-connected
// location from the external provider. A provider failure for one location
// leaves that location's previous blackout set untouched and moves on.
type CalendarSyncWorker struct {
	UoWFactory uow.UoWFactory
	Provider   domaincalendar.Provider
	Logger     *slog.Logger
	Interval   time.Duration
	// Horizon bounds how far ahead blackouts are fetched.
	Horizon time.Duration
	Now     func() time.Time
}

func (w *CalendarSyncWorker) Run(ctx context.Context) error {
	if w.UoWFactory == nil || w.Provider == nil {
		return ErrSyncWorkerNotConfigured
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				w.logger().ErrorContext(ctx, "calendar sync pass failed", slog.Any("error", err))
			}
		}
	}
}

// SyncOnce runs a single pass over all connected locations.
func (w *CalendarSyncWorker) SyncOnce(ctx context.Context) error {
	listUnit, err := w.UoWFactory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	locations, err := listUnit.Locations().ListCalendarConnected(ctx)
	rollbackErr := listUnit.Rollback(ctx)
	if err != nil {
		return err
	}
	if rollbackErr != nil {
		return rollbackErr
	}

	now := w.now()
	timeMax := now.Add(w.horizon())
	for _, loc := range locations {
		if err := w.syncLocation(ctx, loc, now, timeMax); err != nil {
			// keep the stale set, keep going
			w.logger().WarnContext(ctx, "calendar sync failed, keeping previous blackouts",
				slog.String("location_id", string(loc.ID)),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (w *CalendarSyncWorker) syncLocation(ctx context.Context, loc *domainlocation.Location, now, timeMax time.Time) error {
	days, err := domaincalendar.Sync(ctx, w.Provider, loc.CalendarRefreshToken, now, timeMax)
	if err != nil {
		return err
	}

	unit, err := w.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	cal, err := unit.Availability().Calendar(ctx, loc.ID)
	if err != nil {
		return err
	}
	cal.SetBlackouts(days, now)
	if err := unit.Availability().Save(ctx, cal); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	committed = true

	w.logger().DebugContext(ctx, "calendar synced",
		slog.String("location_id", string(loc.ID)),
		slog.Int("blackout_days", len(days)),
	)
	return nil
}

func (w *CalendarSyncWorker) interval() time.Duration {
	if w.Interval <= 0 {
		return 15 * time.Minute
	}
	return w.Interval
}

func (w *CalendarSyncWorker) horizon() time.Duration {
	if w.Horizon <= 0 {
		return 365 * 24 * time.Hour
	}
	return w.Horizon
}

func (w *CalendarSyncWorker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *CalendarSyncWorker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
