// Package users consumes the user lifecycle queues. The catalogue keeps no
// user state; events are only recorded in the log.
package users

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-catalog-sync/internal/events"
	"github.com/segmentio/kafka-go"
)

type AuditHandler struct {
	Log *slog.Logger
}

// Handle logs one user event. The kind is the queue it arrived on.
func (a *AuditHandler) Handle(_ context.Context, m kafka.Message) error {
	u, err := events.DecodeUser(m.Value)
	if err != nil {
		return err
	}
	switch events.Kind(m.Topic) {
	case events.UserCreated:
		a.Log.Info("user created", "user_id", u.UserID, "username", u.Username, "role", u.Role)
	case events.UserUpdated:
		a.Log.Info("user updated", "user_id", u.UserID, "username", u.Username, "role", u.Role)
	case events.UserDeleted:
		a.Log.Info("user deleted", "user_id", u.UserID)
	default:
		a.Log.Debug("ignoring user event", "queue", m.Topic)
	}
	return nil
}
