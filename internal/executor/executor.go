// Package executor performs the outbound postback call and classifies
// its outcome for the retry state machine.
package executor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/trafficgate/postback-gateway/internal/request"
)

const defaultMaxExcerpt = 512

// Result captures one HTTP attempt. StatusCode is nil on network-level
// failure (timeout, connection refused, DNS).
type Result struct {
	StatusCode *int
	Excerpt    string
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the attempt terminates the delivery as sent.
func (r Result) Succeeded() bool {
	return r.StatusCode != nil && *r.StatusCode/100 == 2
}

// HTTPExecutor issues rendered requests. The per-call deadline comes from
// the profile's retry policy, so a single shared client carries no timeout
// of its own.
type HTTPExecutor struct {
	client     *http.Client
	maxExcerpt int
}

func New(maxExcerpt int) *HTTPExecutor {
	if maxExcerpt <= 0 {
		maxExcerpt = defaultMaxExcerpt
	}
	return &HTTPExecutor{
		client:     &http.Client{},
		maxExcerpt: maxExcerpt,
	}
}

// Do issues the call, bounded by timeout, and never retries by itself:
// retry/backoff decisions belong to the engine so every attempt lands in
// the ledger.
//
// Non-2xx responses of any class are failures here. 4xx is deliberately
// not special-cased: the retry budget is a single per-profile knob, and
// retrying a 400 the same way as a 503 keeps the policy predictable for
// operators.
func (x *HTTPExecutor) Do(ctx context.Context, r request.Rendered, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return Result{Err: err, Duration: time.Since(start)}
	}
	for name, vals := range r.Headers {
		for _, v := range vals {
			req.Header.Add(name, v)
		}
	}

	res, err := x.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{Err: err, Duration: elapsed}
	}
	defer res.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(res.Body, int64(x.maxExcerpt)))
	code := res.StatusCode

	return Result{
		StatusCode: &code,
		Excerpt:    string(excerpt),
		Duration:   elapsed,
	}
}

// Backoff returns the delay before attempt n+1, where n is the attempt
// that just failed (1-based): base * 2^(n-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
