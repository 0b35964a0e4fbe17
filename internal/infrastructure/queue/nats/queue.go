package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/kirillkom/anvesana/internal/infrastructure/resilience"
)

const (
	clientName   = "anvesana"
	workerGroup  = "ingest-workers"
	drainTimeout = 5 * time.Second
)

// Queue carries ingest requests from the API to the workers over one NATS
// subject.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	// FailFast disables connect retries so a missing server fails New.
	FailFast bool
	Executor *resilience.Executor
}

func (o Options) natsOptions() []nats.Option {
	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := o.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := o.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	return []nats.Option{
		nats.Name(clientName),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(!o.FailFast),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func New(url, subject string, opts Options) (*Queue, error) {
	if subject == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "nats queue", errors.New("subject is empty"))
	}
	conn, err := nats.Connect(url, opts.natsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject, executor: opts.Executor}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngestRequested(ctx context.Context, req domain.IngestRequest) error {
	payload, err := encodeRequest(req)
	if err != nil {
		return err
	}
	publish := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor == nil {
		err = publish(ctx)
	} else {
		err = q.executor.Execute(ctx, "nats.publish", publish, classifyPublishError)
	}
	return resilience.WrapTemporaryFor("nats publish", err, classifyPublishError)
}

// SubscribeIngestRequested hands each request to handler until ctx is
// cancelled, then drains the subscription. Workers share one queue group so
// a request runs once.
func (q *Queue) SubscribeIngestRequested(ctx context.Context, handler func(context.Context, domain.IngestRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		q.dispatch(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, data []byte, handler func(context.Context, domain.IngestRequest) error) {
	req, err := decodeRequest(data)
	if err != nil {
		slog.Error("ingest_request_malformed", "subject", q.subject, "error", err)
		return
	}
	if err := handler(ctx, req); err != nil {
		slog.Error("ingest_request_failed", "run_id", req.RunID, "error", err)
	}
}
