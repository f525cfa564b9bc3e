package services

import (
	"sync"
	"time"

	"surveybot/logger"
	"surveybot/models"
)

// SessionStore holds the volatile per-user survey sessions. Entries carry a
// TTL refreshed on every event; a background sweep evicts sessions abandoned
// mid-survey so the map cannot grow without bound.
//
// The store guards only the map itself. Per-session access is serialized by
// the transport layer (one event per user at a time), so sessions need no
// locking of their own.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*models.SurveySession
	ttl      time.Duration
	interval time.Duration
	log      *logger.Logger
	stop     chan struct{}
}

func NewSessionStore(ttl, sweepInterval time.Duration, log *logger.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*models.SurveySession),
		ttl:      ttl,
		interval: sweepInterval,
		log:      log.With("component", "session_store"),
		stop:     make(chan struct{}),
	}
}

// Get returns the user's session and refreshes its TTL.
func (st *SessionStore) Get(userID int64) (*models.SurveySession, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[userID]
	if !ok {
		return nil, false
	}
	sess.TouchedAt = time.Now()
	return sess, true
}

// Reset discards any existing session for the user and creates a fresh one.
func (st *SessionStore) Reset(userID int64) *models.SurveySession {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := models.NewSurveySession(userID)
	st.sessions[userID] = sess
	return sess
}

// Delete removes the user's session from memory.
func (st *SessionStore) Delete(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}

// Len returns the number of resident sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Run sweeps expired sessions until Stop is called. Intended to run in its
// own goroutine, like the teacher's long-lived service loops.
func (st *SessionStore) Run() {
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.sweep(time.Now())
		case <-st.stop:
			return
		}
	}
}

func (st *SessionStore) Stop() {
	close(st.stop)
}

func (st *SessionStore) sweep(now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	evicted := 0
	for userID, sess := range st.sessions {
		if now.Sub(sess.TouchedAt) > st.ttl {
			delete(st.sessions, userID)
			evicted++
		}
	}
	if evicted > 0 {
		st.log.Info("evicted abandoned sessions", "count", evicted, "resident", len(st.sessions))
	}
}
