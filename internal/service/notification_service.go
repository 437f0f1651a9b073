package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kinetix/ima-backend/internal/config"
	"github.com/kinetix/ima-backend/internal/events"
)

const webhookTimeout = 5 * time.Second

// StatsNotifier broadcasts on a pub/sub channel. Implemented by persistence.Redis.
type StatsNotifier interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// StatsRefresh tells dashboard observers that aggregate counts changed.
type StatsRefresh struct {
	Reason     events.EventType `json:"reason"`
	IncidentID string           `json:"incident_id"`
	At         time.Time        `json:"at"`
}

// NotificationService fans domain events out to external observers.
type NotificationService struct {
	broker       events.Publisher
	stats        StatsNotifier
	statsChannel string
	webhookURL   string
	logger       *zap.Logger
}

// NotificationDependencies bundles the outbound sinks. Nil sinks are skipped.
type NotificationDependencies struct {
	Broker events.Publisher
	Stats  StatsNotifier
	Logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.Config, deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		broker:       deps.Broker,
		stats:        deps.Stats,
		statsChannel: cfg.Redis.StatsChannel,
		webhookURL:   strings.TrimSpace(cfg.Notification.WebhookURL),
		logger:       logger,
	}
}

// Handle delivers one event to every configured sink.
func (n *NotificationService) Handle(ctx context.Context, event events.Event) error {
	n.logger.Info("incident event",
		zap.String("event_type", string(event.Type)),
		zap.String("incident_id", event.IncidentID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))

	var errs []error
	if n.broker != nil {
		if err := n.broker.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("broker: %w", err))
		}
	}
	if affectsStats(event.Type) {
		if err := n.publishStatsRefresh(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("stats refresh: %w", err))
		}
	}
	if event.Type == events.EventIncidentStateChanged {
		if err := n.sendWebhook(event); err != nil {
			errs = append(errs, fmt.Errorf("webhook: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (n *NotificationService) publishStatsRefresh(ctx context.Context, event events.Event) error {
	if n.stats == nil || n.statsChannel == "" {
		return nil
	}
	payload, err := json.Marshal(StatsRefresh{
		Reason:     event.Type,
		IncidentID: event.IncidentID,
		At:         event.Timestamp,
	})
	if err != nil {
		return err
	}
	return n.stats.Publish(ctx, n.statsChannel, payload)
}

func (n *NotificationService) sendWebhook(event events.Event) error {
	if n.webhookURL == "" {
		return nil
	}
	agent := fiber.Post(n.webhookURL).Timeout(webhookTimeout).JSON(event)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code >= fiber.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", code)
	}
	n.logger.Debug("webhook delivered",
		zap.String("incident_id", event.IncidentID),
		zap.Int("status", code))
	return nil
}

// stats only move when an incident appears or changes state
func affectsStats(eventType events.EventType) bool {
	return eventType == events.EventIncidentCreated || eventType == events.EventIncidentStateChanged
}
