package service

import (
	"context"

	"github.com/upgrade-events/Upgrade-Events/internal/domain"
	"github.com/upgrade-events/Upgrade-Events/internal/events"
	"github.com/upgrade-events/Upgrade-Events/internal/repository"
	"github.com/upgrade-events/Upgrade-Events/pkg/kafka"
	"github.com/upgrade-events/Upgrade-Events/pkg/logger"
	"go.uber.org/zap"
)

func getEvent(ctx context.Context, r *repository.Repositories, eventID int64) (*domain.Event, error) {
	event, err := r.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrEventNotFound
	}
	return event, nil
}

// requireManager loads an event and checks the actor owns it or is an admin
func requireManager(ctx context.Context, r *repository.Repositories, actor domain.Actor, eventID int64) (*domain.Event, error) {
	event, err := getEvent(ctx, r, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(event.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

// publish sends a lifecycle event; the database is the source of truth, so failures are only logged
func publish(ctx context.Context, p events.Publisher, topic string, msg kafka.Message) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, msg); err != nil {
		logger.Get().WarnContext(ctx, "failed to publish event",
			zap.String("topic", topic), zap.String("key", msg.Key()), zap.Error(err))
	}
}
