package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// SessionStore keeps each session in a hash that expires with the session and
// indexes session ids per principal in a set.
//
// Key format:
//
//	session:<digest>              hash
//	session:principal:<username>  set of digests
type SessionStore struct {
	client *redis.Client
}

var _ ports.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

const (
	fieldUserID      = "user_id"
	fieldPrincipal   = "principal"
	fieldAuthorities = "authorities"
	fieldCreatedAt   = "created_at"
	fieldExpiresAt   = "expires_at"
)

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if ttl <= 0 {
		return oops.Code("SESSION_CREATE_FAILED").With("session_ttl", ttl).Errorf("session already expired")
	}

	key := sessionKey(session.ID)
	idx := principalKey(session.Principal)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, session.UserID,
			fieldPrincipal, session.Principal,
			fieldAuthorities, strings.Join(session.Authorities, ","),
			fieldCreatedAt, session.CreatedAt.UTC().Format(time.RFC3339Nano),
			fieldExpiresAt, session.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, idx, session.ID)
		// Every session shares the configured TTL, so the newest one bounds
		// the index lifetime.
		pipe.Expire(ctx, idx, ttl)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("principal", session.Principal).Wrap(err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.Session, error) {
	vals, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return domain.Session{}, oops.Code("SESSION_GET_FAILED").Wrap(err)
	}
	if len(vals) == 0 {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, vals[fieldCreatedAt])
	if err != nil {
		return domain.Session{}, oops.Code("SESSION_CORRUPT").With("field", fieldCreatedAt).Wrap(err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, vals[fieldExpiresAt])
	if err != nil {
		return domain.Session{}, oops.Code("SESSION_CORRUPT").With("field", fieldExpiresAt).Wrap(err)
	}

	var authorities []string
	if a := vals[fieldAuthorities]; a != "" {
		authorities = strings.Split(a, ",")
	}
	return domain.Session{
		ID:          id,
		UserID:      vals[fieldUserID],
		Principal:   vals[fieldPrincipal],
		Authorities: authorities,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	key := sessionKey(id)
	principal, err := s.client.HGet(ctx, key, fieldPrincipal).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, principalKey(principal), id)
		return nil
	})
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("principal", principal).Wrap(err)
	}
	return nil
}

// ListByPrincipal may include ids whose hash has already expired; deleting
// those is a no-op.
func (s *SessionStore) ListByPrincipal(ctx context.Context, principal string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, principalKey(principal)).Result()
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("principal", principal).Wrap(err)
	}
	slices.Sort(ids)
	return ids, nil
}

func sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }

func principalKey(principal string) string { return fmt.Sprintf("session:principal:%s", principal) }
