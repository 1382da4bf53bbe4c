package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

// SessionStore keeps quiz sessions in Redis so any instance can serve the
// next request. Each save refreshes the key's TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, id string) (app.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if isNil(err) {
		return app.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return app.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	var session app.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return app.Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session app.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
