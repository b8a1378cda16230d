package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- AtomicWriteFile ---

func TestAtomicWriteFileCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "main.py")

	require.NoError(t, AtomicWriteFile(path, []byte("x = 1\n"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestAtomicWriteFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

	require.NoError(t, AtomicWriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestAtomicWriteFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, AtomicWriteFile(path, []byte("package main\n"), 0644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "main.go", entries[0].Name())
}

func TestExistsTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.py")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	assert.True(t, Exists(path))
}

func TestExistsFalse(t *testing.T) {
	assert.False(t, Exists("/nonexistent/path/does/not/exist.py"))
}

// --- WithLock ---

func TestWithLockBasicOperation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locktest")

	called := false
	err := WithLock(context.Background(), path, DefaultLockTimeout, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithLockConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concurrent")

	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), path, 10*time.Second, func() error {
				// Read-modify-write under lock
				val := atomic.LoadInt64(&counter)
				time.Sleep(time.Millisecond)
				atomic.StoreInt64(&counter, val+1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(10), atomic.LoadInt64(&counter))
}

func TestWithReadLockBasicOperation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readlocktest")

	called := false
	err := WithReadLock(context.Background(), path, DefaultLockTimeout, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithLockTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timeouttest")

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = WithLock(context.Background(), path, 10*time.Second, func() error {
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked

	err := WithLock(context.Background(), path, 200*time.Millisecond, func() error {
		t.Fatal("callback should not have been called")
		return nil
	})
	assert.Error(t, err, "expected timeout error when lock is held")

	close(release)
}
