// Package notify delivers user notifications without ever failing the
// operation that produced them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type Notifier interface {
	Notify(ctx context.Context, userID string, n model.Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID string, n model.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, userID string, n model.Notification) error {
	return f(ctx, userID, n)
}

// LogSink writes notifications to the log.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(_ context.Context, userID string, n model.Notification) error {
	s.Logger.Info("notification",
		zap.String("user_id", userID),
		zap.String("type", string(n.Type)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
		zap.String("action_url", n.ActionURL),
	)
	return nil
}

// WebhookSink posts each notification as JSON to URL.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

type webhookPayload struct {
	UserID string `json:"user_id"`
	model.Notification
	SentAt time.Time `json:"sent_at"`
}

func (s WebhookSink) Notify(ctx context.Context, userID string, n model.Notification) error {
	body, err := json.Marshal(webhookPayload{UserID: userID, Notification: n, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userID string, n model.Notification) error {
	var errs []error
	for _, target := range m {
		if err := target.Notify(ctx, userID, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sent is one delivered notification captured by a Recorder.
type Sent struct {
	UserID       string
	Notification model.Notification
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

func (r *Recorder) Notify(_ context.Context, userID string, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{UserID: userID, Notification: n})
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// For returns what was sent to userID.
func (r *Recorder) For(userID string) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, s := range r.sent {
		if s.UserID == userID {
			out = append(out, s.Notification)
		}
	}
	return out
}
