package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/goroutine"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

const maxOutboxBackoff = 10 * time.Minute

// Pusher доставляет событие в открытые WebSocket-соединения пользователя.
type Pusher interface {
	Push(userID uuid.UUID, event string, data any) error
}

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
}

// OutboxDispatcher превращает события outbox в уведомления и рассылает их по WebSocket.
// Доставка «хотя бы один раз»: событие отмечается доставленным в той же транзакции,
// что и запись уведомления.
type OutboxDispatcher struct {
	store    repository.Store
	pusher   Pusher
	cfg      DispatcherConfig
	recovery *goroutine.RecoveryHandler
	now      func() time.Time
}

func NewOutboxDispatcher(store repository.Store, pusher Pusher, cfg DispatcherConfig) *OutboxDispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	return &OutboxDispatcher{
		store:    store,
		pusher:   pusher,
		cfg:      cfg,
		recovery: goroutine.DefaultRecoveryHandler,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run опрашивает outbox до отмены контекста. Паника в одном проходе не останавливает цикл.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		d.recovery.Run("outbox-dispatch", func() {
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("outbox: ошибка доставки событий")
			}
		})
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// backoff растёт экспоненциально от BaseBackoff и ограничен сверху.
func (d *OutboxDispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxOutboxBackoff {
			return maxOutboxBackoff
		}
	}
	return delay
}

// DispatchOnce доставляет до BatchSize готовых событий и возвращает число доставленных.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	delivered := 0
	for i := 0; i < d.cfg.BatchSize; i++ {
		handled, ok, err := d.dispatchNext(ctx)
		if err != nil {
			return delivered, err
		}
		if !handled {
			break
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

var errOutboxEmpty = errors.New("outbox: no due events")

// dispatchNext обрабатывает одно событие в собственной транзакции.
// handled == false означает, что готовых событий нет.
func (d *OutboxDispatcher) dispatchNext(ctx context.Context) (handled, delivered bool, err error) {
	var (
		event      models.OutboxEvent
		deliverErr error
	)
	err = d.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		events, err := tx.Outbox().ClaimDue(ctx, d.now(), 1)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return errOutboxEmpty
		}
		event = events[0]

		notifications := NewNotificationService(tx.Notifications())
		if _, deliverErr = notifications.DeliverEvent(ctx, event); deliverErr != nil {
			return deliverErr
		}
		return tx.Outbox().MarkDelivered(ctx, event.ID, d.now())
	})

	switch {
	case errors.Is(err, errOutboxEmpty):
		return false, false, nil
	case deliverErr != nil:
		// транзакция откатилась, неудачную попытку записываем отдельно
		attempts := event.Attempts + 1
		dead := attempts >= d.cfg.MaxAttempts
		next := d.now().Add(d.backoff(attempts))
		logger.Log.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.EventType,
			"attempts":   attempts,
			"dead":       dead,
		}).WithError(deliverErr).Warn("outbox: не удалось доставить событие")
		if err := d.store.Outbox().MarkFailed(ctx, event.ID, attempts, deliverErr.Error(), next, dead); err != nil {
			return false, false, err
		}
		return true, false, nil
	case err != nil:
		return false, false, err
	}

	if d.pusher != nil {
		if err := d.pusher.Push(event.RecipientID, event.EventType, json.RawMessage(event.Payload)); err != nil {
			logger.Log.WithError(err).WithField("event_id", event.ID).Debug("outbox: пользователь получит событие через API уведомлений")
		}
	}
	return true, true, nil
}
