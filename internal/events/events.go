package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

const (
	PROGRESS_CHANNEL Channel = "dgisync.progress"
	RUNS_CHANNEL     Channel = "dgisync.runs"
)

type MessageType string

const (
	DOWNLOAD_PROGRESS MessageType = "download_progress"
	RUN_STARTED       MessageType = "run_started"
	RUN_COMPLETED     MessageType = "run_completed"
)

type Event struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Channel   Channel        `json:"channel"`
	RunID     string         `json:"runId,omitempty"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

type EventHandler func(event Event) error

// EventBus publishes run events to valkey pub/sub and to in-process handlers.
// A nil client keeps delivery in-process only.
type EventBus struct {
	client   valkey.Client
	logger   logger.Logger
	handlers map[Channel][]EventHandler
	mutex    sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(client valkey.Client) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		client:   client,
		logger:   logger.New("EventBus"),
		handlers: make(map[Channel][]EventHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (eb *EventBus) Publish(channel Channel, event Event) error {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Channel == "" {
		event.Channel = channel
	}

	if eb.client != nil {
		eventData, err := json.Marshal(event)
		if err != nil {
			return log.Err("failed to marshal event", err, "eventID", event.ID)
		}

		ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
		defer cancel()

		err = eb.client.Do(ctx, eb.client.B().Publish().Channel(channel.String()).Message(string(eventData)).Build()).
			Error()
		if err != nil {
			return log.Err("failed to publish event to valkey", err, "channel", channel, "eventID", event.ID)
		}
	}

	log.Debug("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)
	eb.notifyLocalHandlers(channel, event)

	return nil
}

// Subscribe registers an in-process handler. Handlers run synchronously in
// publish order.
func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) {
	eb.mutex.Lock()
	eb.handlers[channel] = append(eb.handlers[channel], handler)
	eb.mutex.Unlock()

	eb.logger.Function("Subscribe").Info("Handler subscribed to channel", "channel", channel)
}

func (eb *EventBus) notifyLocalHandlers(channel Channel, event Event) {
	log := eb.logger.Function("notifyLocalHandlers")

	eb.mutex.RLock()
	handlers := append([]EventHandler(nil), eb.handlers[channel]...)
	eb.mutex.RUnlock()

	for i, handler := range handlers {
		if err := handler(event); err != nil {
			log.Er("handler failed", err, "channel", channel, "eventID", event.ID, "handlerIndex", i)
		}
	}
}

func (eb *EventBus) Close() error {
	eb.cancel()
	eb.logger.Function("Close").Info("EventBus closed")
	return nil
}

func (eb *EventBus) PublishDownloadProgress(progress types.DownloadProgressEvent) error {
	return eb.Publish(PROGRESS_CHANNEL, Event{
		Type:  DOWNLOAD_PROGRESS,
		RunID: progress.RunID,
		Data: map[string]any{
			"key":       progress.Key,
			"outcome":   string(progress.Outcome),
			"completed": progress.Completed,
			"total":     progress.Total,
		},
	})
}

func (eb *EventBus) PublishRunStarted(runID string, expectedLatest string) error {
	return eb.Publish(RUNS_CHANNEL, Event{
		Type:  RUN_STARTED,
		RunID: runID,
		Data:  map[string]any{"expectedLatest": expectedLatest},
	})
}

func (eb *EventBus) PublishRunCompleted(summary types.RunSummary) error {
	return eb.Publish(RUNS_CHANNEL, Event{
		Type:  RUN_COMPLETED,
		RunID: summary.RunID,
		Data: map[string]any{
			"status":     string(summary.Status),
			"downloads":  summary.Downloads,
			"failedKeys": summary.FailedKeys,
			"sentinel":   summary.Sentinel.After,
		},
	})
}
