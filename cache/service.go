package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service pairs a Store with a Codec and a default TTL. It is the handle
// the query, entity and page caches share.
type Service struct {
	store  Store
	codec  Codec
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

type Option func(*Service)

func WithCodec(codec Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithDefaultTTL sets the TTL used when a write passes none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wraps store. The codec defaults to JSON.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		codec:  JSONCodec{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New builds the store described by cfg and wraps it in a Service.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewService(store,
		WithCodec(CodecByName(cfg.Codec)),
		WithDefaultTTL(cfg.TTL),
		WithLogger(logger),
	), nil
}

func (s *Service) Store() Store { return s.store }
func (s *Service) Codec() Codec { return s.codec }
func (s *Service) Logger() *slog.Logger { return s.logger }
func (s *Service) DefaultTTL() time.Duration { return s.ttl }

// Load decodes the value at key into dest. A miss returns false with a
// nil error.
func (s *Service) Load(ctx context.Context, key string, dest any) (bool, error) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return false, Unavailable(err, "cache get", map[string]any{"key": key})
	}
	if !ok || len(data) == 0 {
		return false, nil
	}
	if err := s.codec.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Save encodes value and stores it under key. A ttl <= 0 uses the default TTL.
func (s *Service) Save(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := s.codec.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		return Unavailable(err, "cache set", map[string]any{"key": key})
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, keys ...string) error {
	if err := s.store.Delete(ctx, keys...); err != nil {
		return Unavailable(err, "cache delete", map[string]any{"keys": keys})
	}
	return nil
}

func (s *Service) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	n, err := s.store.DeleteByPrefix(ctx, prefix)
	if err != nil {
		return n, Unavailable(err, "cache delete by prefix", map[string]any{"prefix": prefix})
	}
	return n, nil
}

func (s *Service) Close() error {
	return s.store.Close()
}

// GetOrFetch is a read-through helper: a hit is decoded into T, a miss
// calls fetch and stores its result. Concurrent misses on the same key
// share one fetch. Cache failures are logged and fall through to fetch;
// fetch errors are returned and nothing is stored.
func GetOrFetch[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fetch FetchFn[T]) (T, error) {
	var cached T
	ok, err := s.Load(ctx, key, &cached)
	if err != nil {
		LogError(s.logger, "cache read failed", err, slog.String("key", key))
	}
	if ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		fresh, err := fetch(ctx)
		if err != nil {
			return fresh, err
		}
		if err := s.Save(ctx, key, fresh, ttl); err != nil {
			LogError(s.logger, "cache write failed", err, slog.String("key", key))
		}
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	result, ok := v.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return result, nil
}
