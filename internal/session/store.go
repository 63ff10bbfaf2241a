// Package session keeps the in-flight intake conversations in memory.
// Sessions are never persisted; a restart drops every open wizard.
package session

import (
	"sync"
	"time"

	"qabulxona/backend/internal/wizard"
)

// Session is one user's open conversation.
type Session struct {
	UserID int64
	Step   wizard.Step
	Draft  wizard.Draft
	// Language is copied from the user's preference when the session opens.
	Language string
	// EditComplaintID is set while the user is replacing a complaint summary.
	EditComplaintID string
	UpdatedAt       time.Time
}

// Store is the lookup of open sessions by user id. Implementations return
// copies so callers never share draft state.
type Store interface {
	Get(userID int64) (Session, bool)
	Set(s Session)
	Delete(userID int64)
	// Sweep removes sessions not touched since cutoff and returns how many were dropped.
	Sweep(cutoff time.Time) int
	Count() int

	// Language returns the user's chosen locale, or "" when none was chosen.
	// The preference outlives the session.
	Language(userID int64) string
	SetLanguage(userID int64, lang string)
}

// MemoryStore is a mutex guarded map implementation of Store.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[int64]Session
	languages map[int64]string
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[int64]Session),
		languages: make(map[int64]string),
		now:       time.Now,
	}
}

// WithClock replaces the time source used to stamp UpdatedAt.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Get(userID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	s.Draft = s.Draft.Clone()
	return s, true
}

func (m *MemoryStore) Set(s Session) {
	s.Draft = s.Draft.Clone()
	s.UpdatedAt = m.now()

	m.mu.Lock()
	m.sessions[s.UserID] = s
	m.mu.Unlock()
}

func (m *MemoryStore) Delete(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

func (m *MemoryStore) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) Language(userID int64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.languages[userID]
}

func (m *MemoryStore) SetLanguage(userID int64, lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages[userID] = lang
	if s, ok := m.sessions[userID]; ok {
		s.Language = lang
		m.sessions[userID] = s
	}
}
