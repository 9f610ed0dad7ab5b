package social

import (
	"context"

	"go.uber.org/zap"

	"aperture-backend/internal/domain"
	"aperture-backend/internal/store"
	"aperture-backend/pkg/observability"
)

// Notifier performs activity fan-out: turning a successful like, comment or
// follow into a notification row for the affected user. A user is never
// notified about their own action, and a failed fan-out never fails the
// primary write.
type Notifier struct {
	store   store.DataService
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewNotifier creates a notifier
func NewNotifier(s store.DataService, logger *zap.Logger, metrics *observability.Collector) *Notifier {
	return &Notifier{
		store:   s,
		logger:  logger,
		metrics: metrics,
	}
}

// Notify inserts one activity row for the recipient. Self-notifications are
// suppressed. Failures are logged and counted only; the caller's primary
// action already committed and is not rolled back.
func (n *Notifier) Notify(ctx context.Context, actorID, recipientID string, activityType domain.ActivityType, postID, commentID, content *string) {
	if actorID == recipientID {
		n.metrics.FanoutSuppressions.Inc()
		return
	}

	row := map[string]any{
		"user_id":  recipientID,
		"actor_id": actorID,
		"type":     string(activityType),
	}
	if postID != nil {
		row["post_id"] = *postID
	}
	if commentID != nil {
		row["comment_id"] = *commentID
	}
	if content != nil {
		row["content"] = *content
	}

	if err := n.store.Insert(ctx, domain.RelationActivities, row, nil); err != nil {
		n.metrics.FanoutFailures.Inc()
		n.logger.Error("Activity fan-out failed",
			zap.String("type", string(activityType)),
			zap.String("recipient", recipientID),
			zap.Error(err),
		)
		return
	}

	n.metrics.ActivitiesCreated.WithLabelValues(string(activityType)).Inc()
	n.logger.Debug("Activity created",
		zap.String("type", string(activityType)),
		zap.String("recipient", recipientID),
	)
}
