package worker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trafficgate/postback-gateway/internal/engine"
	"github.com/trafficgate/postback-gateway/internal/kafka"
	"github.com/trafficgate/postback-gateway/internal/logger"
	"github.com/trafficgate/postback-gateway/internal/model"
	"go.uber.org/zap"
)

// EventConsumer:
// - fetches tracking events from Kafka,
// - hands them to the delivery engine (which owns its own worker pool),
// - commits offsets after hand-off (at-least-once; the engine dedupes).
type EventConsumer struct {
	Consumer *kafka.Consumer
	Engine   *engine.Engine

	// Intake parallelism: how many goroutines parse + fan out events.
	// Outbound HTTP concurrency is bounded separately by the engine pool.
	Workers int
}

func NewEventConsumer(consumer *kafka.Consumer, eng *engine.Engine) *EventConsumer {
	return &EventConsumer{
		Consumer: consumer,
		Engine:   eng,
		Workers:  8,
	}
}

// Run starts the fetch loop and blocks until ctx is cancelled.
func (w *EventConsumer) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 8
	}

	msgCh := make(chan kafka.Message, w.Workers*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Log.Error("kafka fetch failed", zap.Error(err))
				continue
			}
			select {
			case msgCh <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runProcessor(ctx, msgCh)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (w *EventConsumer) runProcessor(ctx context.Context, in <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m)
		}
	}
}

func (w *EventConsumer) processOne(ctx context.Context, m kafka.Message) {
	var ev model.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ClickID == "" || ev.Type == "" {
		// poison message: commit and skip
		_ = w.Consumer.Commit(ctx, m)
		if err != nil {
			logger.Log.Warn("bad event json", zap.Error(err))
		} else {
			logger.Log.Warn("event missing clickid or type")
		}
		return
	}

	if err := w.Engine.Process(ctx, ev); err != nil {
		if ctx.Err() != nil {
			return
		}
		// leave uncommitted so the event is re-fetched
		logger.Log.Error("event process failed", zap.Error(err), zap.String("event", ev.Ref()))
		return
	}

	if err := w.Consumer.Commit(ctx, m); err != nil {
		logger.Log.Error("kafka commit failed", zap.Error(err))
	}
}
