package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/trafficgate/postback-gateway/internal/model"
	"github.com/trafficgate/postback-gateway/internal/request"
	"github.com/trafficgate/postback-gateway/internal/util"
)

// TestOverrides let the operator shape the synthetic event. Zero values
// fall back to the defaults below.
type TestOverrides struct {
	ClickID   string   `json:"clickid,omitempty"`
	EventType string   `json:"event,omitempty"`
	Country   string   `json:"country,omitempty"`
	Revenue   *float64 `json:"revenue,omitempty"`
	Currency  string   `json:"currency,omitempty"`
}

// TestResult is returned synchronously to the operator. The request view
// is the redacted form; plaintext credentials never leave the engine.
type TestResult struct {
	Request struct {
		Method string `json:"method"`
		URL    string `json:"url"`
		Body   string `json:"body,omitempty"`
	} `json:"request"`
	Attempt model.DeliveryAttempt `json:"attempt"`
}

var ErrProfileNotFound = fmt.Errorf("profile not found")

// Test runs a synthetic event through build + execute exactly once.
// Retries are off in test mode and the ledger row is flagged synthetic,
// so health statistics stay untouched while the attempt remains visible
// in the operator log.
func (e *Engine) Test(ctx context.Context, profileID int64, ov TestOverrides) (TestResult, error) {
	p, err := e.Profiles.GetByID(ctx, profileID)
	if err != nil {
		return TestResult{}, err
	}
	if p == nil {
		return TestResult{}, ErrProfileNotFound
	}

	ev := syntheticEvent(ov)
	job := Job{
		DeliveryID: util.New(),
		ProfileID:  profileID,
		Event:      ev,
		Attempt:    1,
		Synthetic:  true,
	}
	retry := withDefaults(p.Retry, e.Defaults)
	retry.MaxAttempts = 1 // no retries in test mode

	var out TestResult

	rendered, err := request.Build(*p, ev)
	if err != nil {
		row := model.DeliveryAttempt{
			Outcome:      model.OutcomeFailed,
			ErrorMessage: strPtr(err.Error()),
		}
		e.appendRow(ctx, job, retry, row)
		return out, err
	}

	out.Request.Method = rendered.Method
	out.Request.URL = rendered.RedactedURL
	out.Request.Body = rendered.RedactedBody

	res := e.Exec.Do(ctx, rendered, time.Duration(retry.TimeoutMs)*time.Millisecond)

	outcome := model.OutcomeAbandoned
	if res.Succeeded() {
		outcome = model.OutcomeSent
	}

	row := model.DeliveryAttempt{
		RequestMethod:      rendered.Method,
		RequestURL:         rendered.RedactedURL,
		RequestBody:        rendered.RedactedBody,
		ResponseStatusCode: res.StatusCode,
		ResponseExcerpt:    res.Excerpt,
		DurationMs:         res.Duration.Milliseconds(),
		Outcome:            outcome,
	}
	if res.Err != nil {
		row.ErrorMessage = strPtr(res.Err.Error())
	}

	e.appendRow(ctx, job, retry, row)

	out.Attempt = row
	out.Attempt.DeliveryID = job.DeliveryID
	out.Attempt.ProfileID = profileID
	out.Attempt.ClickID = ev.ClickID
	out.Attempt.EventType = string(ev.Type)
	out.Attempt.AttemptNumber = 1
	out.Attempt.MaxAttempts = 1
	out.Attempt.Synthetic = true
	return out, nil
}

func syntheticEvent(ov TestOverrides) model.Event {
	ev := model.Event{
		ClickID:    "test-" + util.NewLower(),
		Type:       model.EventLead,
		OccurredAt: time.Now(),
		Revenue:    model.Money{Amount: 100, Currency: "USD"},
		Country:    "US",
		Device:     "desktop",
		IP:         "127.0.0.1",
	}
	if ov.ClickID != "" {
		ev.ClickID = ov.ClickID
	}
	if t, ok := model.ParseEventType(ov.EventType); ok {
		ev.Type = t
	}
	if ov.Country != "" {
		ev.Country = ov.Country
	}
	if ov.Revenue != nil {
		ev.Revenue.Amount = *ov.Revenue
	}
	if ov.Currency != "" {
		ev.Revenue.Currency = ov.Currency
	}
	return ev
}
