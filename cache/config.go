package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-query-cache/internal/cacheinfra"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Backend string        `yaml:"backend"`
	Codec   string        `yaml:"codec"`
	TTL     time.Duration `yaml:"ttl"`
	Memory  MemoryConfig  `yaml:"memory"`
	Redis   RedisConfig   `yaml:"redis"`
}

// MemoryConfig mirrors the sturdyc settings of the in-process store.
type MemoryConfig struct {
	Capacity           int           `yaml:"capacity"`
	NumShards          int           `yaml:"num_shards"`
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
	EvictionInterval   time.Duration `yaml:"eviction_interval"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	ScanCount   int64  `yaml:"scan_count"`
	DeleteBatch int    `yaml:"delete_batch"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	mem := cacheinfra.DefaultConfig()
	rds := cacheinfra.DefaultRedisConfig()
	return Config{
		Backend: BackendMemory,
		Codec:   CodecJSON,
		TTL:     time.Hour,
		Memory: MemoryConfig{
			Capacity:           mem.Capacity,
			NumShards:          mem.NumShards,
			TTL:                mem.TTL,
			EvictionPercentage: mem.EvictionPercentage,
			EvictionInterval:   mem.EvictionInterval,
		},
		Redis: RedisConfig{
			Addr:        rds.Addr,
			ScanCount:   rds.ScanCount,
			DeleteBatch: rds.DeleteBatch,
		},
	}
}

// Validate checks the shared settings and the settings of the selected backend.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
		validation.Field(&c.Codec, validation.In(CodecJSON, CodecMsgpack)),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache config")
	}

	switch c.Backend {
	case BackendRedis:
		err = c.redisConfig().Validate()
	default:
		err = c.memoryConfig().Validate()
	}
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache "+c.Backend+" config")
	}
	return nil
}

// NewStore builds the store selected by cfg.Backend.
func NewStore(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendRedis {
		store, err := cacheinfra.DialRedis(cfg.redisConfig())
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := cacheinfra.NewMemoryStore(cfg.memoryConfig())
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (c Config) memoryConfig() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Memory.Capacity,
		NumShards:          c.Memory.NumShards,
		TTL:                c.Memory.TTL,
		EvictionPercentage: c.Memory.EvictionPercentage,
		EvictionInterval:   c.Memory.EvictionInterval,
	}
}

func (c Config) redisConfig() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		TTL:         c.TTL,
		ScanCount:   c.Redis.ScanCount,
		DeleteBatch: c.Redis.DeleteBatch,
	}
}
