// Package engine orchestrates the postback pipeline: match -> build ->
// execute -> ledger, with a bounded worker pool for the fan-out and a
// delayed queue for retries.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/trafficgate/postback-gateway/internal/executor"
	"github.com/trafficgate/postback-gateway/internal/logger"
	"github.com/trafficgate/postback-gateway/internal/match"
	"github.com/trafficgate/postback-gateway/internal/metrics"
	"github.com/trafficgate/postback-gateway/internal/model"
	"github.com/trafficgate/postback-gateway/internal/repository"
	"github.com/trafficgate/postback-gateway/internal/request"
	"github.com/trafficgate/postback-gateway/internal/util"
	"go.uber.org/zap"
)

type Engine struct {
	// Dependencies
	Profiles repository.ProfilesRepository
	Ledger   repository.AttemptsRepository
	Exec     *executor.HTTPExecutor
	Sched    RetryScheduler
	Dedupe   Deduper // optional

	// Behavior
	Workers      int
	QueueSize    int
	PollInterval time.Duration
	Defaults     model.RetryPolicy

	jobs chan Job
	once sync.Once
}

// New builds an engine with sane defaults.
func New(
	profiles repository.ProfilesRepository,
	ledger repository.AttemptsRepository,
	exec *executor.HTTPExecutor,
	sched RetryScheduler,
) *Engine {
	return &Engine{
		Profiles:     profiles,
		Ledger:       ledger,
		Exec:         exec,
		Sched:        sched,
		Workers:      32,
		QueueSize:    256,
		PollInterval: time.Second,
		Defaults: model.RetryPolicy{
			MaxAttempts:    3,
			TimeoutMs:      5000,
			BackoffBaseSec: 30,
		},
	}
}

func (e *Engine) init() {
	e.once.Do(func() {
		if e.Workers <= 0 {
			e.Workers = 32
		}
		if e.QueueSize <= 0 {
			e.QueueSize = 256
		}
		if e.PollInterval <= 0 {
			e.PollInterval = time.Second
		}
		e.jobs = make(chan Job, e.QueueSize)
	})
}

// Run starts the delivery workers and the retry poll loop, blocking until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.init()

	var wg sync.WaitGroup
	for i := 0; i < e.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.runWorker(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runRetryPoller(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Process fans one event out to every matching profile. Each matched
// profile becomes an independent Delivery starting at attempt 1.
func (e *Engine) Process(ctx context.Context, ev model.Event) error {
	e.init()

	if e.Dedupe != nil {
		seen, err := e.Dedupe.Seen(ctx, ev.Ref())
		if err != nil {
			// guard failure degrades to "not seen"
			logger.Log.Warn("dedupe check failed", zap.Error(err), zap.String("event", ev.Ref()))
		} else if seen {
			logger.Log.Debug("duplicate event skipped", zap.String("event", ev.Ref()))
			return nil
		}
	}

	profiles, err := e.Profiles.ListEnabled(ctx)
	if err != nil {
		return err
	}

	matched := match.Match(ev, profiles)
	for _, p := range matched {
		job := Job{
			DeliveryID: util.New(),
			ProfileID:  p.ID,
			Event:      ev,
			Attempt:    1,
		}
		select {
		case e.jobs <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Marked only now that the fan-out completed: a failed Process above
	// leaves the ref unmarked so the replayed message is not skipped.
	if e.Dedupe != nil {
		if err := e.Dedupe.Mark(ctx, ev.Ref()); err != nil {
			logger.Log.Warn("dedupe mark failed", zap.Error(err), zap.String("event", ev.Ref()))
		}
	}

	logger.Log.Debug("event fanned out",
		zap.String("event", ev.Ref()),
		zap.Int("profiles", len(matched)),
	)
	return nil
}

func (e *Engine) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-e.jobs:
			e.deliver(ctx, job)
		}
	}
}

func (e *Engine) runRetryPoller(ctx context.Context) {
	tick := time.NewTicker(e.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			due, err := e.Sched.PopDue(ctx, time.Now(), e.QueueSize)
			if err != nil {
				if ctx.Err() == nil {
					logger.Log.Error("retry poll failed", zap.Error(err))
				}
				continue
			}
			for _, job := range due {
				select {
				case e.jobs <- job:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// deliver runs exactly one attempt of one Delivery and appends its ledger
// row. The next attempt, if any, is scheduled only after the row is
// recorded, which keeps attempts strictly sequential per Delivery.
func (e *Engine) deliver(ctx context.Context, job Job) {
	p, err := e.Profiles.GetByID(ctx, job.ProfileID)
	if err != nil {
		logger.Log.Error("profile read failed, dropping attempt",
			zap.Error(err), zap.Int64("profile_id", job.ProfileID), zap.String("delivery_id", job.DeliveryID))
		return
	}

	// Retries re-check enabled: a profile disabled mid-Delivery abandons
	// instead of firing against stale configuration.
	if p == nil || !p.Enabled {
		if job.Attempt > 1 {
			e.appendRow(ctx, job, *retryPolicyOrDefault(p, e.Defaults), model.DeliveryAttempt{
				Outcome:      model.OutcomeAbandoned,
				ErrorMessage: strPtr("profile disabled"),
			})
		} else {
			logger.Log.Warn("profile gone before first attempt",
				zap.Int64("profile_id", job.ProfileID), zap.String("delivery_id", job.DeliveryID))
		}
		return
	}

	retry := withDefaults(p.Retry, e.Defaults)

	rendered, err := request.Build(*p, job.Event)
	if err != nil {
		// ConfigurationError: recorded without a network attempt.
		e.appendRow(ctx, job, retry, model.DeliveryAttempt{
			Outcome:      model.OutcomeFailed,
			ErrorMessage: strPtr(err.Error()),
		})
		return
	}

	res := e.Exec.Do(ctx, rendered, time.Duration(retry.TimeoutMs)*time.Millisecond)

	var outcome model.Outcome
	switch {
	case res.Succeeded():
		outcome = model.OutcomeSent
	case job.Attempt < retry.MaxAttempts:
		outcome = model.OutcomeRetrying
	default:
		outcome = model.OutcomeAbandoned
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

	if !e.appendRow(ctx, job, retry, row) {
		// Ledger is the source of truth: without the row, no retry.
		return
	}

	if outcome == model.OutcomeRetrying {
		delay := executor.Backoff(time.Duration(retry.BackoffBaseSec)*time.Second, job.Attempt)
		next := job
		next.Attempt++
		if err := e.Sched.Schedule(ctx, next, delay); err != nil {
			logger.Log.Error("retry schedule failed",
				zap.Error(err), zap.String("delivery_id", job.DeliveryID), zap.Int("attempt", next.Attempt))
		}
	}
}

// appendRow fills the identity fields and writes the ledger row; returns
// false when the write failed.
func (e *Engine) appendRow(ctx context.Context, job Job, retry model.RetryPolicy, row model.DeliveryAttempt) bool {
	row.ID = util.New()
	row.DeliveryID = job.DeliveryID
	row.ProfileID = job.ProfileID
	row.ClickID = job.Event.ClickID
	row.EventType = string(job.Event.Type)
	row.AttemptNumber = job.Attempt
	row.MaxAttempts = retry.MaxAttempts
	row.Synthetic = job.Synthetic
	row.CreatedAt = time.Now()

	if err := e.Ledger.Insert(ctx, row); err != nil {
		logger.Log.Error("ledger insert failed",
			zap.Error(err), zap.String("delivery_id", job.DeliveryID), zap.Int("attempt", job.Attempt))
		return false
	}

	metrics.DeliveriesTotal.WithLabelValues(row.Outcome.String()).Inc()
	if row.ResponseStatusCode != nil || row.ErrorMessage != nil {
		metrics.AttemptDuration.WithLabelValues(row.Outcome.String()).
			Observe(float64(row.DurationMs) / 1000)
	}

	logger.Log.Info("delivery attempt",
		zap.String("delivery_id", job.DeliveryID),
		zap.Int64("profile_id", job.ProfileID),
		zap.String("event", job.Event.Ref()),
		zap.Int("attempt", job.Attempt),
		zap.String("outcome", row.Outcome.String()),
	)
	return true
}

func withDefaults(rp, def model.RetryPolicy) model.RetryPolicy {
	if rp.MaxAttempts <= 0 {
		rp.MaxAttempts = def.MaxAttempts
	}
	if rp.TimeoutMs <= 0 {
		rp.TimeoutMs = def.TimeoutMs
	}
	if rp.BackoffBaseSec <= 0 {
		rp.BackoffBaseSec = def.BackoffBaseSec
	}
	return rp
}

func retryPolicyOrDefault(p *model.PostbackProfile, def model.RetryPolicy) *model.RetryPolicy {
	if p == nil {
		return &def
	}
	rp := withDefaults(p.Retry, def)
	return &rp
}

func strPtr(s string) *string { return &s }
