// File: services/dialogue/store.go
package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"voicecab/models"

	"github.com/go-redis/redis/v8"
)

// ErrSessionNotFound is returned when no conversation exists for a session id.
var ErrSessionNotFound = errors.New("conversation session not found")

// SessionStore owns conversation state lifecycle. Do serializes turns for one
// session: the engine runs each turn inside Do so two concurrently delivered
// webhooks for the same call cannot race on the same draft.
type SessionStore interface {
	Create(state *models.ConversationState) error
	Get(sessionID string) (*models.ConversationState, error)
	Save(state *models.ConversationState) error
	Delete(sessionID string) error
	Do(sessionID string, fn func() error) error
}

// keyedMutex hands out one mutex per session id. Locks are in-process in both
// store implementations; only one instance serves a given session (horizontal
// scaling of session state is out of scope).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

func (k *keyedMutex) drop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.locks, key)
}

// MemorySessionStore is the in-process session table.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationState
	turns    *keyedMutex
}

// NewMemorySessionStore creates an empty in-process store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.ConversationState),
		turns:    newKeyedMutex(),
	}
}

// Create installs the state, replacing any previous conversation for the same
// session id (at most one state per session).
func (s *MemorySessionStore) Create(state *models.ConversationState) error {
	return s.Save(state)
}

func (s *MemorySessionStore) Get(sessionID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copyState(state), nil
}

func (s *MemorySessionStore) Save(state *models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.SessionID] = copyState(state)
	return nil
}

func (s *MemorySessionStore) Delete(sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	s.turns.drop(sessionID)
	return nil
}

func (s *MemorySessionStore) Do(sessionID string, fn func() error) error {
	lock := s.turns.get(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// copyState returns an independent copy so callers never share the stored
// struct (PendingPlace is the only pointer field).
func copyState(state *models.ConversationState) *models.ConversationState {
	clone := *state
	if state.PendingPlace != nil {
		place := *state.PendingPlace
		clone.PendingPlace = &place
	}
	return &clone
}

// RedisSessionStore keeps conversation state as JSON blobs with a TTL, so
// abandoned calls expire on their own. Turn serialization still uses
// in-process keyed locks.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	turns  *keyedMutex
}

const sessionKeyPrefix = "conv:sess:"

// NewRedisSessionStore creates a Redis-backed store with the given TTL.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl, turns: newKeyedMutex()}
}

func (s *RedisSessionStore) Create(state *models.ConversationState) error {
	return s.Save(state)
}

func (s *RedisSessionStore) Get(sessionID string) (*models.ConversationState, error) {
	ctx := context.Background()
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session %s: %w", sessionID, err)
	}
	var state models.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (s *RedisSessionStore) Save(state *models.ConversationState) error {
	ctx := context.Background()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+state.SessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", state.SessionID, err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(sessionID string) error {
	ctx := context.Background()
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	s.turns.drop(sessionID)
	return nil
}

func (s *RedisSessionStore) Do(sessionID string, fn func() error) error {
	lock := s.turns.get(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}
