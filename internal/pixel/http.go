package pixel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 5 * time.Second

// Payload is the JSON body posted for each event.
type Payload struct {
	ID          string            `json:"id"`
	Event       string            `json:"event"`
	Timestamp   time.Time         `json:"timestamp"`
	ErrorDomain string            `json:"error_domain,omitempty"`
	ErrorDetail string            `json:"error_detail,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// HTTPNotifier posts events as JSON to an endpoint. Events beyond the rate
// limit are dropped.
type HTTPNotifier struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	now      func() time.Time
}

// HTTPOption configures an HTTPNotifier.
type HTTPOption func(*HTTPNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(n *HTTPNotifier) { n.client = c }
}

// WithRate sets the sustained event rate and burst.
func WithRate(perSecond float64, burst int) HTTPOption {
	return func(n *HTTPNotifier) { n.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewHTTPNotifier returns a notifier posting to endpoint. By default it
// allows one event per second with a burst of five.
func NewHTTPNotifier(endpoint string, opts ...HTTPOption) *HTTPNotifier {
	n := &HTTPNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(1), 5),
		logger:   slog.Default().With("component", "pixel"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Fire implements Notifier. Delivery happens on its own goroutine.
func (n *HTTPNotifier) Fire(event Event, err error, params map[string]string) <-chan struct{} {
	if !n.limiter.Allow() {
		n.logger.Warn("pixel dropped by rate limit", "event", string(event))
		return closed()
	}

	p := Payload{
		Event:       string(event),
		Timestamp:   n.now().UTC(),
		ErrorDomain: errorDomain(err),
		Params:      cloneParams(params),
	}
	if err != nil {
		p.ErrorDetail = err.Error()
	}
	if id, idErr := uuid.NewV7(); idErr == nil {
		p.ID = id.String()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := n.post(ctx, p); err != nil {
			n.logger.Warn("pixel delivery failed", "event", p.Event, "id", p.ID, "error", err)
		}
	}()
	return done
}

func (n *HTTPNotifier) post(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
