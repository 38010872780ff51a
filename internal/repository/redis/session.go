// Package redis stores refresh sessions in Redis. Each session is a hash
// that expires with the session; a per-user set and an expiry index keep
// listing and sweeping cheap.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/authgate/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

const (
	fieldUserID    = "user_id"
	fieldExpiresAt = "expires_at"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// KEYS[1] session key, KEYS[2] user set, KEYS[3] expiry index.
// ARGV[1] token hash, ARGV[2] user id, ARGV[3] expires at (ms), ARGV[4] now (ns), ARGV[5] expires at (ns).
var createSessionLua = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "user_id", ARGV[2], "expires_at", ARGV[5], "created_at", ARGV[4], "updated_at", ARGV[4])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
redis.call("SADD", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// KEYS[1] session key, KEYS[2] expiry index. ARGV[1] token hash, ARGV[2] user set prefix.
var deleteSessionLua = goredis.NewScript(`
redis.call("ZREM", KEYS[2], ARGV[1])
local uid = redis.call("HGET", KEYS[1], "user_id")
if not uid then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[2] .. uid, ARGV[1])
return 1
`)

type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
}

// NewSessionRepository stores sessions under keys starting with prefix.
func NewSessionRepository(client goredis.UniversalClient, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) sessionKey(tokenHash string) string {
	return r.prefix + ":session:" + tokenHash
}

func (r *SessionRepository) userPrefix() string {
	return r.prefix + ":user:"
}

func (r *SessionRepository) userKey(userID string) string {
	return r.userPrefix() + userID
}

func (r *SessionRepository) expiryKey() string {
	return r.prefix + ":expiry"
}

func (r *SessionRepository) Create(ctx context.Context, session model.RefreshSession) error {
	now := time.Now().UnixNano()
	created, err := createSessionLua.Run(ctx, r.client,
		[]string{r.sessionKey(session.TokenHash), r.userKey(session.UserID), r.expiryKey()},
		session.TokenHash,
		session.UserID,
		session.ExpiresAt.UnixMilli(),
		now,
		session.ExpiresAt.UnixNano(),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to create refresh session: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("failed to create refresh session: %w", model.ErrConflict)
	}
	return nil
}

func (r *SessionRepository) FindOne(ctx context.Context, tokenHash, userID string) (model.RefreshSession, error) {
	fields, err := r.client.HGetAll(ctx, r.sessionKey(tokenHash)).Result()
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("failed to get refresh session: %w", err)
	}
	if len(fields) == 0 || fields[fieldUserID] != userID {
		return model.RefreshSession{}, model.ErrNotFound
	}

	return decodeSession(tokenHash, fields)
}

func (r *SessionRepository) DeleteOne(ctx context.Context, tokenHash string) (bool, error) {
	deleted, err := deleteSessionLua.Run(ctx, r.client,
		[]string{r.sessionKey(tokenHash), r.expiryKey()},
		tokenHash,
		r.userPrefix(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to delete refresh session: %w", err)
	}
	return deleted == 1, nil
}

// Find lists the sessions of userID, newest first. Index entries whose
// session already expired are pruned.
func (r *SessionRepository) Find(ctx context.Context, userID string) ([]model.RefreshSession, error) {
	userKey := r.userKey(userID)

	hashes, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh sessions: %w", err)
	}

	sessions := []model.RefreshSession{}
	if len(hashes) == 0 {
		return sessions, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(hashes))
	for i, hash := range hashes {
		cmds[i] = pipe.HGetAll(ctx, r.sessionKey(hash))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read refresh sessions: %w", err)
	}

	var stale []any
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			stale = append(stale, hashes[i])
			continue
		}
		session, err := decodeSession(hashes[i], fields)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune refresh session index: %w", err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	userKey := r.userKey(userID)

	hashes, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list refresh sessions: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		members := make([]any, 0, len(hashes))
		for _, hash := range hashes {
			pipe.Del(ctx, r.sessionKey(hash))
			members = append(members, hash)
		}
		if len(members) > 0 {
			pipe.ZRem(ctx, r.expiryKey(), members...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete refresh sessions by user: %w", err)
	}
	return nil
}

// DeleteExpired removes every session whose expiry is before now and
// reports how many index entries it cleared.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	hashes, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired refresh sessions: %w", err)
	}

	for _, hash := range hashes {
		if _, err := r.DeleteOne(ctx, hash); err != nil {
			return 0, err
		}
	}
	return int64(len(hashes)), nil
}

// Ping reports whether Redis is reachable.
func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeSession(tokenHash string, fields map[string]string) (model.RefreshSession, error) {
	session := model.RefreshSession{
		TokenHash: tokenHash,
		UserID:    fields[fieldUserID],
	}

	for field, dst := range map[string]*time.Time{
		fieldExpiresAt: &session.ExpiresAt,
		fieldCreatedAt: &session.CreatedAt,
		fieldUpdatedAt: &session.UpdatedAt,
	} {
		ns, err := strconv.ParseInt(fields[field], 10, 64)
		if err != nil {
			return model.RefreshSession{}, fmt.Errorf("failed to decode refresh session %s: %w", field, err)
		}
		*dst = time.Unix(0, ns)
	}

	return session, nil
}
