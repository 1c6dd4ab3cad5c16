package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

var ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")

// Publisher is satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type ConversionEvent struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Filename      string    `json:"filename"`
	Hash          string    `json:"hash,omitempty"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// Emitter publishes conversion events to one topic. A nil Emitter drops events.
type Emitter struct {
	pub     Publisher
	topic   string
	timeout time.Duration
}

func NewEmitter(pub Publisher, topic string) *Emitter {
	return &Emitter{pub: pub, topic: topic, timeout: 5 * time.Second}
}

func (e *Emitter) Emit(ctx context.Context, ev ConversionEvent) error {
	if e == nil || e.pub == nil {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal conversion event: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.pub.Publish(e.topic, body)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("publish %s: %w", e.topic, err)
		}
		slog.DebugContext(ctx, "published conversion event", "topic", e.topic, "id", ev.ID)
		return nil
	case <-time.After(e.timeout):
		return ErrPublishTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateTopics asks nsqd to create topics up front so consumers polling
// lookupd do not 404 before the first publish.
func CreateTopics(ctx context.Context, client *http.Client, nsqdHTTP string, topics ...string) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	for _, topic := range topics {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		if err != nil {
			slog.Warn("failed to build NSQ topic request", "topic", topic, "error", err)
			continue
		}
		resp, err := client.Do(req) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			slog.Warn("unexpected status creating NSQ topic", "topic", topic, "status", resp.StatusCode)
		} else {
			slog.Info("NSQ topic pre-created", "topic", topic)
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}
}
