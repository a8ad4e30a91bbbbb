package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xavierca1/funnel-sync/internal/usecase"
)

type SyncRunner interface {
	Execute(ctx context.Context, input usecase.RunSyncInput) (*usecase.RunSyncOutput, error)
}

// Worker drains the sync-request queue one message at a time. Runs must not
// interleave: the watermark-read / sync-log-write pair is not atomic with
// the work it brackets, so the queue is the serialization point (prefetch 1,
// single consumer loop, no per-message goroutines).
type Worker struct {
	Ch     *amqp.Channel
	Runner SyncRunner
	Log    *zap.Logger
}

func NewWorker(ch *amqp.Channel, runner SyncRunner, log *zap.Logger) *Worker {
	return &Worker{Ch: ch, Runner: runner, Log: log}
}

func (w *Worker) Start(queueName string) {
	if err := w.Ch.Qos(1, 0, false); err != nil {
		w.Log.Fatal("failed to set channel QoS", zap.Error(err))
	}

	msgs, err := w.Ch.Consume(
		queueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		w.Log.Fatal("failed to register queue consumer", zap.Error(err))
	}

	w.Log.Info("sync worker waiting for requests", zap.String("queue", queueName))

	for d := range msgs {
		var req SyncRequest
		if err := json.Unmarshal(d.Body, &req); err != nil {
			w.Log.Warn("malformed sync request, dropping", zap.Error(err))
			d.Nack(false, false)
			continue
		}

		w.Log.Info("processing queued sync",
			zap.String("request_id", req.ID), zap.String("mode", req.Mode))

		out, err := w.Runner.Execute(context.Background(), usecase.RunSyncInput{
			Mode:  req.Mode,
			Owner: req.Owner,
		})
		if err != nil {
			// The orchestrator already finalized the sync log and alerted.
			// Requeueing would replay a likely-deterministic failure.
			w.Log.Error("queued sync failed", zap.String("request_id", req.ID), zap.Error(err))
			d.Nack(false, false)
			continue
		}

		w.Log.Info("queued sync finished",
			zap.String("request_id", req.ID),
			zap.String("mode", out.Mode),
			zap.Int("deals", out.DealsProcessed))
		d.Ack(false)
	}
}
