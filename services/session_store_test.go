package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreResetGetDelete(t *testing.T) {
	store := NewSessionStore(time.Hour, time.Minute, testLogger())

	_, ok := store.Get(1)
	assert.False(t, ok)

	sess := store.Reset(1)
	assert.Equal(t, int64(1), sess.UserID)
	assert.Equal(t, 1, store.Len())

	got, ok := store.Get(1)
	require.True(t, ok)
	assert.Same(t, sess, got)

	// Reset replaces the session wholesale.
	fresh := store.Reset(1)
	assert.NotSame(t, sess, fresh)
	assert.Equal(t, 1, store.Len())

	store.Delete(1)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStoreSweepEvictsStaleSessions(t *testing.T) {
	store := NewSessionStore(time.Hour, time.Minute, testLogger())

	stale := store.Reset(1)
	stale.TouchedAt = time.Now().Add(-2 * time.Hour)
	store.Reset(2)

	store.sweep(time.Now())

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get(1)
	assert.False(t, ok)
	_, ok = store.Get(2)
	assert.True(t, ok)
}

func TestSessionStoreGetRefreshesTTL(t *testing.T) {
	store := NewSessionStore(time.Hour, time.Minute, testLogger())

	sess := store.Reset(1)
	sess.TouchedAt = time.Now().Add(-2 * time.Hour)

	_, ok := store.Get(1)
	require.True(t, ok)

	store.sweep(time.Now())
	assert.Equal(t, 1, store.Len(), "a touched session survives the sweep")
}
