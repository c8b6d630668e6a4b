package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := Acquire(dir)
	require.NoError(t, err)

	// Lock file exists and records the holder's pid.
	data, err := os.ReadFile(filepath.Join(dir, LockName))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// A second launcher must be refused while the lock is held.
	_, err = Acquire(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another launcher")

	require.NoError(t, lock.Release())

	// Released locks can be re-acquired.
	again, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestRelease_NilLock(t *testing.T) {
	t.Parallel()

	var lock *Lock
	require.NoError(t, lock.Release())
}

func TestRelease_AlreadyRemoved(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, LockName)))
	require.NoError(t, lock.Release())
}
