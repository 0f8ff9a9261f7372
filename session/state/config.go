/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gravitational/finance-session/lib"
	"github.com/gravitational/finance-session/lib/backoff"
	"github.com/gravitational/finance-session/lib/logger"
	"github.com/gravitational/finance-session/lib/stringset"
	"github.com/gravitational/trace"
	"github.com/redis/go-redis/v9"
)

// Supported backend types.
const (
	TypeDiskv  = "diskv"
	TypeBolt   = "bolt"
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

var supportedTypes = stringset.New(TypeDiskv, TypeBolt, TypeRedis, TypeMemory)

const (
	defaultDirName        = "finance-session"
	defaultBoltFileName   = "session.db"
	defaultRedisPrefix    = "finance-session:"
	defaultConnectTimeout = 10 * time.Second

	redisBackoffBase = 100 * time.Millisecond
	redisBackoffMax  = 2 * time.Second
)

// Config selects and configures the credential store backend.
type Config struct {
	Type           string        `toml:"type" help:"Credential store backend: diskv, bolt, redis or memory" default:"diskv" enum:"diskv,bolt,redis,memory" env:"FINSESSION_STORAGE_TYPE"`
	Dir            string        `toml:"dir" help:"Directory for the diskv backend" env:"FINSESSION_STORAGE_DIR"`
	Path           string        `toml:"path" help:"Database file for the bolt backend" env:"FINSESSION_STORAGE_PATH"`
	Addr           string        `toml:"addr" help:"Redis address" default:"localhost:6379" env:"FINSESSION_STORAGE_ADDR"`
	Password       string        `toml:"password" help:"Redis password, or an absolute path to a file holding it" env:"FINSESSION_STORAGE_PASSWORD"`
	DB             int           `toml:"db" help:"Redis database number" env:"FINSESSION_STORAGE_DB"`
	Prefix         string        `toml:"prefix" help:"Redis key prefix" default:"finance-session:" env:"FINSESSION_STORAGE_PREFIX"`
	ConnectTimeout time.Duration `toml:"connect-timeout" help:"How long to wait for redis to come up" default:"10s" env:"FINSESSION_STORAGE_CONNECT_TIMEOUT"`
}

// CheckAndSetDefaults validates the config and fills in the paths.
func (c *Config) CheckAndSetDefaults() error {
	if c.Type == "" {
		c.Type = TypeDiskv
	}
	if !supportedTypes.ContainsFold(c.Type) {
		return trace.BadParameter("unsupported storage type %q, supported types are %s", c.Type, supportedTypes)
	}
	c.Type = strings.ToLower(c.Type)

	switch c.Type {
	case TypeDiskv:
		if c.Dir == "" {
			dir, err := defaultDir()
			if err != nil {
				return trace.Wrap(err)
			}
			c.Dir = dir
		}
	case TypeBolt:
		if c.Path == "" {
			dir, err := defaultDir()
			if err != nil {
				return trace.Wrap(err)
			}
			c.Path = filepath.Join(dir, defaultBoltFileName)
		}
	case TypeRedis:
		if c.Addr == "" {
			return trace.BadParameter("storage.addr is required for the redis backend")
		}
		if c.Prefix == "" {
			c.Prefix = defaultRedisPrefix
		}
		if c.ConnectTimeout <= 0 {
			c.ConnectTimeout = defaultConnectTimeout
		}
		password, err := lib.ResolveSecret(c.Password)
		if err != nil {
			return trace.Wrap(err)
		}
		c.Password = password
	}
	return nil
}

// Open creates the configured backend. For redis it waits until the
// server answers or the connect timeout elapses.
func Open(ctx context.Context, c Config) (Backend, error) {
	if err := c.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	log := logger.Get(ctx).WithField("storage", c.Type)

	switch c.Type {
	case TypeMemory:
		log.Warn("Using in-memory credential store, the session will not survive a restart")
		return NewMemoryBackend(), nil
	case TypeDiskv:
		log.WithField("dir", c.Dir).Debug("Opening credential store")
		backend, err := NewDiskvBackend(c.Dir)
		return backend, trace.Wrap(err)
	case TypeBolt:
		log.WithField("path", c.Path).Debug("Opening credential store")
		if err := os.MkdirAll(filepath.Dir(c.Path), 0700); err != nil {
			return nil, trace.ConvertSystemError(err)
		}
		backend, err := NewBoltBackend(c.Path)
		return backend, trace.Wrap(err)
	case TypeRedis:
		log.WithField("addr", c.Addr).Debug("Connecting to credential store")
		client := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		})
		backend := NewRedisBackend(client, c.Prefix)
		if err := waitForRedis(ctx, backend, c.ConnectTimeout); err != nil {
			backend.Close()
			return nil, trace.Wrap(err)
		}
		return backend, nil
	}
	return nil, trace.BadParameter("unsupported storage type %q", c.Type)
}

func waitForRedis(ctx context.Context, backend *RedisBackend, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.Get(ctx)
	retry := backoff.Decorr(redisBackoffBase, redisBackoffMax)
	for {
		err := backend.Ping(ctx)
		if err == nil {
			return nil
		}
		log.WithError(err).Debug("Redis is not ready yet")
		if err := retry.Do(ctx); err != nil {
			if lib.IsDeadline(err) {
				return trace.ConnectionProblem(err, "redis did not answer within %v", timeout)
			}
			return trace.Wrap(err)
		}
	}
}

func defaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", trace.Wrap(err, "cannot determine the default storage directory, set storage.dir")
	}
	return filepath.Join(base, defaultDirName), nil
}
