/*
Copyright 2015-2021 Gravitational, Inc.

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
	"sort"
	"sync"

	"github.com/gravitational/trace"
	"github.com/peterbourgon/diskv/v3"
)

const (
	// cacheSizeMaxBytes max memory cache
	cacheSizeMaxBytes = 1024

	// tempDirName is where diskv stages writes before renaming them in place
	tempDirName = ".tmp"
)

// DiskvBackend stores every key in its own file under a directory.
type DiskvBackend struct {
	// mu makes multi-key writes atomic for readers in this process
	mu sync.RWMutex
	// dv is a diskv instance
	dv *diskv.Diskv
}

// NewDiskvBackend creates the directory if needed and opens the backend.
func NewDiskvBackend(dir string) (*DiskvBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, trace.ConvertSystemError(err)
	}

	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		TempDir:      filepath.Join(dir, tempDirName),
	})

	return &DiskvBackend{dv: dv}, nil
}

func (d *DiskvBackend) Get(_ context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.dv.Has(key) {
		return "", trace.NotFound("key %q is not found", key)
	}

	b, err := d.dv.Read(key)
	if err != nil {
		return "", trace.ConvertSystemError(err)
	}

	return string(b), nil
}

func (d *DiskvBackend) Put(_ context.Context, values map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, key := range sortedKeys(values) {
		if err := d.dv.Write(key, []byte(values[key])); err != nil {
			return trace.ConvertSystemError(err)
		}
	}
	return nil
}

func (d *DiskvBackend) Delete(_ context.Context, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, key := range keys {
		if !d.dv.Has(key) {
			continue
		}
		if err := d.dv.Erase(key); err != nil && !os.IsNotExist(err) {
			return trace.ConvertSystemError(err)
		}
	}
	return nil
}

// Close is a no-op, diskv keeps no open handles between calls.
func (d *DiskvBackend) Close() error {
	return nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
