package logger

import (
	"context"

	"github.com/finguard/finguard-server/activitymap"
	"github.com/finguard/finguard-server/auth"
	"go.uber.org/zap"
)

// ActivitySink writes normalized activity records to a zap logger. Failed
// logins and rejected mutations are logged at warn.
type ActivitySink struct {
	logger *zap.Logger
}

var _ auth.ActivitySink = (*ActivitySink)(nil)

func NewActivitySink(l *zap.Logger) *ActivitySink {
	if l == nil {
		l = zap.NewNop()
	}
	return &ActivitySink{logger: l.Named("activity")}
}

// Record implements auth.ActivitySink.
func (s *ActivitySink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := activitymap.Normalize(event, activitymap.WithActorFallback("anonymous"))

	fields := []zap.Field{
		zap.String("actor_id", record.ActorID),
		zap.String("verb", record.Verb),
		zap.String("object_type", record.ObjectType),
		zap.String("object_id", record.ObjectID),
		zap.String("channel", record.Channel),
		zap.Time("occurred_at", record.OccurredAt),
	}
	if len(record.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", record.Metadata))
	}

	switch event.EventType {
	case auth.ActivityEventLoginFailure, auth.ActivityEventRegisterFailure, auth.ActivityEventMutationForbidden:
		s.logger.Warn("activity", fields...)
	default:
		s.logger.Info("activity", fields...)
	}
	return nil
}
