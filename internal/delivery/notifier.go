package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/enums"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/metrics"
)

const maxErrorBody = 512

// ErrNoEndpoints is returned when every endpoint of a target is unavailable.
var ErrNoEndpoints = errors.New("no webhook endpoint available")

// Doer is the subset of *http.Client the notifier needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type endpoint struct {
	url     string
	breaker *gobreaker.CircuitBreaker
}

// Notifier POSTs schedule payloads to the primary and alert webhooks. It walks
// each target's endpoints in order and skips endpoints whose breaker is open.
type Notifier struct {
	client  Doer
	targets map[enums.NotificationTarget][]endpoint
	timeout time.Duration
	signer  *Signer
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
}

// NotifierParams wires the notifier.
type NotifierParams struct {
	Config  config.WebhookConfig
	Client  Doer
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

// NewNotifier builds one circuit breaker per configured endpoint.
func NewNotifier(params NotifierParams) *Notifier {
	cfg := params.Config
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	n := &Notifier{
		client:  client,
		targets: map[enums.NotificationTarget][]endpoint{},
		timeout: timeout,
		signer:  NewSigner(cfg.SigningSecret, cfg.TokenTTL),
		metrics: params.Metrics,
		logg:    params.Logger,
	}
	n.targets[enums.NotificationTargetPrimary] = n.buildEndpoints(enums.NotificationTargetPrimary, cfg.Primary(), cfg)
	n.targets[enums.NotificationTargetAlert] = n.buildEndpoints(enums.NotificationTargetAlert, cfg.Alert(), cfg)
	return n
}

func (n *Notifier) buildEndpoints(target enums.NotificationTarget, urls []string, cfg config.WebhookConfig) []endpoint {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	out := make([]endpoint, 0, len(urls))
	for i, url := range urls {
		settings := gobreaker.Settings{
			Name:        fmt.Sprintf("%s-%d", target, i),
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: n.logStateChange,
		}
		out = append(out, endpoint{url: url, breaker: gobreaker.NewCircuitBreaker(settings)})
	}
	return out
}

func (n *Notifier) logStateChange(name string, from, to gobreaker.State) {
	if n.logg == nil {
		return
	}
	ctx := n.logg.WithFields(context.Background(), map[string]any{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	})
	n.logg.Warn(ctx, "webhook circuit breaker state changed")
}

// Configured reports whether target has at least one endpoint.
func (n *Notifier) Configured(target enums.NotificationTarget) bool {
	return len(n.targets[target]) > 0
}

// Notify delivers payload to the first endpoint of target that accepts it.
func (n *Notifier) Notify(ctx context.Context, payload Payload, target enums.NotificationTarget) Outcome {
	outcome := Outcome{Target: target}
	endpoints := n.targets[target]
	if len(endpoints) == 0 {
		outcome.Skipped = true
		n.metrics.IncOutcome(string(target), metrics.WebhookOutcomeSkipped)
		return outcome
	}

	body, err := json.Marshal(payload)
	if err != nil {
		outcome.Err = fmt.Errorf("encode webhook payload: %w", err)
		n.metrics.IncOutcome(string(target), metrics.WebhookOutcomeFailed)
		return outcome
	}

	var errs error
	for _, ep := range endpoints {
		start := time.Now()
		status, err := n.send(ctx, ep, body, payload.ScheduleID, target)
		n.metrics.ObserveDuration(string(target), time.Since(start))
		if err == nil {
			outcome.Delivered = true
			outcome.Endpoint = ep.url
			outcome.StatusCode = status
			n.metrics.IncOutcome(string(target), metrics.WebhookOutcomeDelivered)
			return outcome
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			n.metrics.IncOutcome(string(target), metrics.WebhookOutcomeBreakerOpen)
		} else {
			n.metrics.IncOutcome(string(target), metrics.WebhookOutcomeFailed)
		}
		outcome.Endpoint = ep.url
		outcome.StatusCode = status
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", ep.url, err))
		if ctx.Err() != nil {
			break
		}
	}
	if errs == nil {
		errs = ErrNoEndpoints
	}
	outcome.Err = errs
	return outcome
}

func (n *Notifier) send(ctx context.Context, ep endpoint, body []byte, scheduleID string, target enums.NotificationTarget) (int, error) {
	result, err := ep.breaker.Execute(func() (interface{}, error) {
		return n.post(ctx, ep.url, body, scheduleID, target)
	})
	status, _ := result.(int)
	return status, err
}

func (n *Notifier) post(ctx context.Context, url string, body []byte, scheduleID string, target enums.NotificationTarget) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Schedule-Target", string(target))
	if n.signer != nil {
		token, err := n.signer.Sign(scheduleID, target)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
