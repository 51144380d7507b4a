// Package webhooks notifies external receivers about chain activity with
// HMAC-signed JSON POSTs.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/blocklog/internal/blockchain"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Blocklog-Signature"

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Service fans chain events out to webhook subscriptions.
type Service struct {
	subs        []Subscription
	secret      string
	httpClient  *http.Client
	retryDelays []time.Duration
	onMetrics   MetricsRecorder
	logger      *zap.Logger

	wg sync.WaitGroup
}

// NewService creates a new webhook Service. secret signs every delivery; an
// empty secret sends unsigned requests.
func NewService(subs []Subscription, secret string, logger *zap.Logger) *Service {
	return &Service{
		subs:       subs,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Retry with exponential backoff: 1s, 5s.
		retryDelays: []time.Duration{0, 1 * time.Second, 5 * time.Second},
		logger:      logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// Observer returns an engine observer that dispatches sealed blocks and
// failed validations.
func (s *Service) Observer() blockchain.Observer {
	return blockchain.ObserverFunc(func(ev blockchain.Event) {
		switch ev.Type {
		case blockchain.EventBlockSealed:
			s.Dispatch(context.Background(), EventBlockSealed, map[string]string{
				"index":         strconv.Itoa(ev.Block.Index),
				"proof":         strconv.FormatInt(ev.Block.Proof, 10),
				"previous_hash": ev.Block.PreviousHash,
				"entries":       strconv.Itoa(len(ev.Block.Entries)),
				"hash":          blockchain.HashBlock(*ev.Block),
			})
		case blockchain.EventEntryAppended:
			s.Dispatch(context.Background(), EventEntryAppended, map[string]string{
				"user":        ev.Entry.User,
				"block_index": strconv.Itoa(ev.Position),
			})
		case blockchain.EventChainValidated:
			if ev.Err == nil {
				return
			}
			payload := map[string]string{"error": ev.Err.Error()}
			if verr, ok := blockchain.AsValidationError(ev.Err); ok {
				payload["index"] = strconv.Itoa(verr.Index)
				payload["reason"] = string(verr.Reason)
			}
			s.Dispatch(context.Background(), EventChainInvalid, payload)
		}
	})
}

// Dispatch fans out a webhook event to all matching subscriptions.
func (s *Service) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	event := WebhookEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	for _, sub := range s.subs {
		if !sub.Wants(eventType) {
			continue
		}
		s.wg.Add(1)
		go func(sub Subscription) {
			defer s.wg.Done()
			s.deliver(ctx, sub, event)
		}(sub)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// deliver sends the event to a single subscription with retries.
func (s *Service) deliver(ctx context.Context, sub Subscription, event WebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}

	var signature string
	if s.secret != "" {
		signature = signPayload(body, s.secret)
	}

	for attempt, delay := range s.retryDelays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		success, errMsg := s.doDelivery(ctx, sub.URL, body, signature)
		if s.onMetrics != nil {
			s.onMetrics(success)
		}
		if success {
			return
		}

		s.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.String("event", event.Type),
			zap.Int("attempt", attempt+1),
			zap.String("error", errMsg),
		)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (s *Service) doDelivery(ctx context.Context, url string, body []byte, signature string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return true, ""
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret.
// Receivers written in Go can use it to authenticate deliveries.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(signPayload(body, secret)), []byte(signature))
}
