package cacheinfra

import (
	"context"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the in-process store.
type Config struct {
	// Capacity defines the maximum number of values that the store can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of sturdyc shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the default and maximum time-to-live of a value. Shorter
	// per-key TTLs are honored on read.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of values to evict
	// when the store reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often sturdyc checks for expired values.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions maps the optional settings to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

type memberSet map[string]struct{}

// MemoryStore keeps values in a sturdyc client and sets in an xsync map.
// Sets are copy-on-write so readers never observe a set mid-update.
type MemoryStore struct {
	values *sturdyc.Client[entry]
	sets   *xsync.MapOf[string, memberSet]
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore validates cfg and builds an in-process store.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &MemoryStore{
		values: client,
		sets:   xsync.NewMapOf[string, memberSet](),
		ttl:    cfg.TTL,
		now:    time.Now,
	}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.values.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.values.Delete(key)
		return nil, false, nil
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{data: make([]byte, len(value))}
	copy(e.data, value)
	if ttl > 0 && ttl < s.ttl {
		e.expiresAt = s.now().Add(ttl)
	}
	s.values.Set(key, e)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.values.Delete(key)
		s.sets.Delete(key)
	}
	return nil
}

// DeleteByPrefix removes matching values and sets.
func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, key := range s.values.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.values.Delete(key)
			removed++
		}
	}

	var setKeys []string
	s.sets.Range(func(key string, _ memberSet) bool {
		if strings.HasPrefix(key, prefix) {
			setKeys = append(setKeys, key)
		}
		return true
	})
	for _, key := range setKeys {
		if _, loaded := s.sets.LoadAndDelete(key); loaded {
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.sets.Compute(key, func(old memberSet, _ bool) (memberSet, bool) {
		next := make(memberSet, len(old)+len(members))
		for m := range old {
			next[m] = struct{}{}
		}
		for _, m := range members {
			next[m] = struct{}{}
		}
		return next, false
	})
	return nil
}

func (s *MemoryStore) SRem(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.sets.Compute(key, func(old memberSet, loaded bool) (memberSet, bool) {
		if !loaded {
			return nil, true
		}
		next := make(memberSet, len(old))
		for m := range old {
			next[m] = struct{}{}
		}
		for _, m := range members {
			delete(next, m)
		}
		return next, len(next) == 0
	})
	return nil
}

func (s *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	set, ok := s.sets.Load(key)
	if !ok {
		return nil, nil
	}
	return sortedMembers(set), nil
}

// SInter returns the members present in every set. A missing set makes the
// intersection empty.
func (s *MemoryStore) SInter(_ context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	sets := make([]memberSet, 0, len(keys))
	for _, key := range keys {
		set, ok := s.sets.Load(key)
		if !ok || len(set) == 0 {
			return nil, nil
		}
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	out := make(memberSet, len(sets[0]))
outer:
	for m := range sets[0] {
		for _, other := range sets[1:] {
			if _, ok := other[m]; !ok {
				continue outer
			}
		}
		out[m] = struct{}{}
	}
	return sortedMembers(out), nil
}

// Close is a no-op; the sturdyc client needs no teardown.
func (s *MemoryStore) Close() error {
	return nil
}

// Size reports the number of values and sets currently held.
func (s *MemoryStore) Size() int {
	return s.values.Size() + s.sets.Size()
}

func sortedMembers(set memberSet) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
