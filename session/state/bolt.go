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
	"time"

	"github.com/gravitational/trace"
	"go.etcd.io/bbolt"
)

var sessionBucket = []byte("session")

const boltOpenTimeout = time.Second

// BoltBackend keeps the values in a single bucket of a BBolt database.
// Every Put is one transaction.
type BoltBackend struct {
	db *bbolt.DB
}

// NewBoltBackend opens (or creates) the database file.
func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, trace.Wrap(err, "opening bbolt db %v", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, trace.Wrap(err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Get(_ context.Context, key string) (string, error) {
	var value string
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get([]byte(key))
		if data == nil {
			return trace.NotFound("key %q is not found", key)
		}
		value = string(data)
		return nil
	})
	return value, trace.Wrap(err)
}

func (b *BoltBackend) Put(_ context.Context, values map[string]string) error {
	return trace.Wrap(b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		for key, value := range values {
			if err := bucket.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (b *BoltBackend) Delete(_ context.Context, keys ...string) error {
	return trace.Wrap(b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(sessionBucket)
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (b *BoltBackend) Close() error {
	return trace.Wrap(b.db.Close())
}
