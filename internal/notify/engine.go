// Package notify turns budget threshold crossings into persisted user
// notifications.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"pfm/internal/core"
	"pfm/internal/log"
)

type Store interface {
	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]core.Notification, error)
}

type Engine struct {
	store  Store
	logger *log.Logger
}

func NewEngine(store Store, logger *log.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

// Message renders the notification text for a crossing. The wording is
// fixed per level:
//
//	warning: "{category} budget has been overspent for {period}."
//	info:    "{pct}% of the {period} {category} budget has been spent."
func Message(level core.Level, categoryName, periodLabel string, percent float64) string {
	if level == core.LevelWarning {
		return fmt.Sprintf("%s budget has been overspent for %s.", categoryName, periodLabel)
	}
	return fmt.Sprintf("%s%% of the %s %s budget has been spent.",
		formatPercent(percent), periodLabel, categoryName)
}

// ThresholdCrossed persists a notification for a crossing event and
// returns it. Info and warning are the only levels that notify.
func (e *Engine) ThresholdCrossed(ctx context.Context, userID, categoryName, periodLabel string, level core.Level, percent float64) (core.Notification, error) {
	if level != core.LevelInfo && level != core.LevelWarning {
		return core.Notification{}, fmt.Errorf("level %q does not notify", level)
	}

	n, err := e.store.CreateNotification(ctx, core.Notification{
		OwnerID: userID,
		Message: Message(level, categoryName, periodLabel, percent),
		Level:   level,
	})
	if err != nil {
		return core.Notification{}, fmt.Errorf("persist notification: %w", err)
	}

	e.logger.InfoContext(ctx, "threshold notification created",
		log.FieldUserID, userID,
		log.FieldLevel, string(level),
		log.FieldPeriod, periodLabel)
	return n, nil
}

// List returns the user's notifications newest-first; limit <= 0 means
// all.
func (e *Engine) List(ctx context.Context, userID string, limit int) ([]core.Notification, error) {
	out, err := e.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// formatPercent trims trailing zeros so 95 renders as "95" and 95.5 as
// "95.5".
func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
