// Package client is the client-side half of the verification flows: a
// flow-session store that carries state across page navigations, an HTTP
// client for the auth endpoints, and an orchestrator that drives the
// request -> code entry -> completion sequence. Nothing here is a trust
// boundary; the server re-validates every code on every call.
package client

import (
	"encoding/json"
	"sync"
	"time"
)

type Purpose string

const (
	PurposeRegistration Purpose = "registration"
	PurposeReset        Purpose = "reset"
)

// DefaultSessionMaxAge bounds how long an abandoned flow session is still
// considered resumable.
const DefaultSessionMaxAge = 30 * time.Minute

// FlowSession is the ephemeral state the SPA keeps in sessionStorage:
// correlation data only, never proof of identity.
type FlowSession struct {
	Email        string    `json:"email"`
	IssuedAt     time.Time `json:"issuedAt"`
	Token        string    `json:"token,omitempty"`
	Code         string    `json:"code,omitempty"`
	CountdownEnd time.Time `json:"countdownEnd,omitempty"`
}

// KV abstracts the string store backing flow sessions (the browser's
// sessionStorage in the SPA).
type KV interface {
	Get(key string) (string, bool)
	Set(key string, value string)
	Delete(key string)
}

type MemoryKV struct {
	mutex  sync.Mutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (s *MemoryKV) Get(key string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryKV) Set(key string, value string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.values[key] = value
}

func (s *MemoryKV) Delete(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.values, key)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// FlowStore persists one FlowSession per purpose. Registration and reset
// use independent keys so concurrent flows cannot cross-contaminate.
type FlowStore struct {
	kv    KV
	clock Clock
}

func NewFlowStore(kv KV) *FlowStore {
	return NewFlowStoreWithClock(kv, realClock{})
}

func NewFlowStoreWithClock(kv KV, clock Clock) *FlowStore {
	if kv == nil {
		kv = NewMemoryKV()
	}
	return &FlowStore{kv: kv, clock: clock}
}

// Save shallow-merges the supplied fields over any existing session of the
// same purpose and stamps IssuedAt.
func (s *FlowStore) Save(purpose Purpose, session FlowSession) {
	merged := session
	if existing := s.Get(purpose); existing != nil {
		if merged.Email == "" {
			merged.Email = existing.Email
		}
		if merged.Token == "" {
			merged.Token = existing.Token
		}
		if merged.Code == "" {
			merged.Code = existing.Code
		}
		if merged.CountdownEnd.IsZero() {
			merged.CountdownEnd = existing.CountdownEnd
		}
	}
	merged.IssuedAt = s.clock.Now()

	data, err := json.Marshal(merged)
	if err != nil {
		return
	}
	s.kv.Set(s.key(purpose), string(data))
}

// Get returns the stored session, or nil when absent or corrupt. A parse
// failure is treated as absent, never surfaced.
func (s *FlowStore) Get(purpose Purpose) *FlowSession {
	raw, ok := s.kv.Get(s.key(purpose))
	if !ok {
		return nil
	}
	var session FlowSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil
	}
	return &session
}

// Clear removes the stored session. Safe on an already-absent session.
func (s *FlowStore) Clear(purpose Purpose) {
	s.kv.Delete(s.key(purpose))
}

// Valid reports whether a session exists and is younger than maxAge
// (DefaultSessionMaxAge when maxAge is zero or negative).
func (s *FlowStore) Valid(purpose Purpose, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	session := s.Get(purpose)
	if session == nil {
		return false
	}
	return s.clock.Now().Sub(session.IssuedAt) < maxAge
}

func (s *FlowStore) key(purpose Purpose) string {
	return "flow:" + string(purpose)
}
