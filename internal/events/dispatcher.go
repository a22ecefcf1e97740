package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dreamboard/internal/domain"
)

// retrySchedule is the delay before each attempt; its length caps attempts.
var retrySchedule = []time.Duration{
	0,
	time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	6 * time.Hour,
}

// MaxAttempts is the number of deliveries tried before an event fails.
var MaxAttempts = len(retrySchedule)

const maxResponseBody = 1 << 10

// NextAttemptDelay returns the wait after the given number of failed
// attempts, or false when the event should be marked failed.
func NextAttemptDelay(attempts int) (time.Duration, bool) {
	if attempts < 1 || attempts >= len(retrySchedule) {
		return 0, false
	}
	return retrySchedule[attempts], true
}

// Sign returns the X-Webhook-Signature value for body sent at ts.
func Sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// DispatcherOptions configures delivery.
type DispatcherOptions struct {
	HTTPClient  *http.Client
	Timeout     time.Duration
	Concurrency int
	// Lease keeps a claimed event invisible to other workers.
	Lease  time.Duration
	Logger zerolog.Logger
	Now    func() time.Time
}

// Dispatcher delivers due outbox rows.
type Dispatcher struct {
	repo        domain.PartnerEventRepository
	client      *http.Client
	timeout     time.Duration
	concurrency int
	lease       time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// Stats summarises one ProcessDue pass.
type Stats struct {
	Claimed   int
	Delivered int
	Retrying  int
	Failed    int
}

// NewDispatcher wires a Dispatcher.
func NewDispatcher(repo domain.PartnerEventRepository, opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		repo:        repo,
		client:      opts.HTTPClient,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		lease:       opts.Lease,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.concurrency <= 0 {
		d.concurrency = 8
	}
	if d.lease <= 0 {
		d.lease = time.Minute
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// ProcessDue claims up to limit due events and delivers them concurrently.
// Only repository failures are returned; delivery failures are scheduled
// for retry.
func (d *Dispatcher) ProcessDue(ctx context.Context, limit int) (Stats, error) {
	now := d.now()
	targets, err := d.repo.ClaimDue(ctx, now, now.Add(d.lease), limit)
	if err != nil {
		return Stats{}, fmt.Errorf("events: claim due: %w", err)
	}
	stats := Stats{Claimed: len(targets)}
	if len(targets) == 0 {
		return stats, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, target := range targets {
		g.Go(func() error {
			outcome, err := d.deliver(gctx, target)
			if err != nil {
				return err
			}
			mu.Lock()
			switch outcome {
			case domain.EventDelivered:
				stats.Delivered++
			case domain.EventFailed:
				stats.Failed++
			default:
				stats.Retrying++
			}
			mu.Unlock()
			return nil
		})
	}
	return stats, g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, t domain.DeliveryTarget) (domain.EventStatus, error) {
	ev := t.Event
	code, err := d.post(ctx, t)
	if err == nil {
		if mErr := d.repo.MarkDelivered(ctx, ev.ID, code); mErr != nil {
			return "", fmt.Errorf("events: mark delivered %s: %w", ev.ID, mErr)
		}
		d.logger.Info().Str("event_id", ev.ID).Str("type", ev.EventType).Int("status", code).Msg("events.delivered")
		return domain.EventDelivered, nil
	}

	attempts := ev.Attempts + 1
	var statusCode *int
	if code > 0 {
		statusCode = &code
	}
	var next *time.Time
	if delay, ok := NextAttemptDelay(attempts); ok {
		at := d.now().Add(delay)
		next = &at
	}
	if mErr := d.repo.MarkAttemptFailed(ctx, ev.ID, attempts, next, statusCode, err.Error()); mErr != nil {
		return "", fmt.Errorf("events: mark attempt %s: %w", ev.ID, mErr)
	}
	logEv := d.logger.Warn().Err(err).Str("event_id", ev.ID).Str("type", ev.EventType).Int("attempts", attempts)
	if next == nil {
		logEv.Msg("events.delivery_failed")
		return domain.EventFailed, nil
	}
	logEv.Time("next_attempt_at", *next).Msg("events.delivery_retry_scheduled")
	return domain.EventPending, nil
}

// post returns the response status and an error for anything but 2xx.
func (d *Dispatcher) post(ctx context.Context, t domain.DeliveryTarget) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ts := d.now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(t.Event.Payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Id", t.Event.ID)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Webhook-Signature", Sign(t.Secret, ts, t.Event.Payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return resp.StatusCode, nil
}
