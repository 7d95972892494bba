// Package natsstore keeps editing sessions in a NATS JetStream key-value bucket.
package natsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/recuredit/editor"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/samber/mo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultBucket is the KV bucket sessions are stored in
const DefaultBucket = "recuredit-sessions"

const (
	tracerName = "github.com/cyp0633/recuredit/editor/natsstore"
	keyPrefix  = "session."
)

// KeyValue is the subset of jetstream.KeyValue used by the store
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// Store implements editor.SessionStore on a JetStream KV bucket.
// Expiry is left to the bucket's TTL.
type Store struct {
	kv     KeyValue
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a store over an existing bucket
func New(kv KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect dials NATS and creates or updates the session bucket with the given TTL.
// The returned connection must be drained by the caller.
func Connect(ctx context.Context, url, bucket string, ttl time.Duration, opts ...Option) (*Store, *nats.Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "recurrence editing sessions",
		TTL:         ttl,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create session bucket %s: %w", bucket, err)
	}

	return New(kv, opts...), nc, nil
}

func sessionKey(id string) string {
	return keyPrefix + id
}

func (s *Store) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", operation),
			attribute.String("db.nats.key", key),
		),
	)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get loads a session; a missing key is reported as mo.None
func (s *Store) Get(ctx context.Context, id string) (mo.Option[*editor.Session], error) {
	key := sessionKey(id)
	ctx, span := s.startSpan(ctx, "get", key)
	defer span.End()

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			span.SetStatus(codes.Ok, "not found")
			return mo.None[*editor.Session](), nil
		}
		s.logger.ErrorContext(ctx, "error getting session from NATS KV",
			"error", err,
			"key", key)
		return mo.None[*editor.Session](), fail(span, fmt.Errorf("get session %s: %w", id, err))
	}

	session, err := editor.DecodeSession(entry.Value())
	if err != nil {
		s.logger.ErrorContext(ctx, "error decoding session",
			"error", err,
			"key", key)
		return mo.None[*editor.Session](), fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return mo.Some(session), nil
}

// Put stores a session snapshot
func (s *Store) Put(ctx context.Context, session *editor.Session) error {
	key := sessionKey(session.ID)
	ctx, span := s.startSpan(ctx, "put", key)
	defer span.End()

	data, err := editor.EncodeSession(session)
	if err != nil {
		return fail(span, err)
	}

	revision, err := s.kv.Put(ctx, key, data)
	if err != nil {
		s.logger.ErrorContext(ctx, "error putting session into NATS KV",
			"error", err,
			"key", key)
		return fail(span, fmt.Errorf("put session %s: %w", session.ID, err))
	}

	span.SetAttributes(attribute.Int64("db.nats.revision", int64(revision)))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes a session; deleting a missing session is not an error
func (s *Store) Delete(ctx context.Context, id string) error {
	key := sessionKey(id)
	ctx, span := s.startSpan(ctx, "delete", key)
	defer span.End()

	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		s.logger.ErrorContext(ctx, "error deleting session from NATS KV",
			"error", err,
			"key", key)
		return fail(span, fmt.Errorf("delete session %s: %w", id, err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
