package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"novalabs_hub/internal/common"
	"novalabs_hub/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// SessionRepository stores server-side sessions. The redis implementation
// keeps one hash per session plus a per-user index set; the sliding
// expiration window doubles as the key TTL so redis reclaims abandoned
// sessions on its own.
type SessionRepository interface {
	Save(ctx context.Context, session *model.Session, ttl time.Duration) error
	Find(ctx context.Context, id string) (*model.Session, error)
	// Touch advances last_activity to now (never backward) and refreshes
	// the expiration window.
	Touch(ctx context.Context, id string, now time.Time, ttl time.Duration) error
	// Update applies whichever of token/state is non-nil, then touches.
	Update(ctx context.Context, id string, token, state *string, now time.Time, ttl time.Duration) error
	// Deactivate is a logical delete and is idempotent.
	Deactivate(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]model.Session, error)
	// PruneDeadIndexEntries drops index members whose session hash is gone
	// (expired and reclaimed). Advisory cleanup only.
	PruneDeadIndexEntries(ctx context.Context) (int, error)
}

type redisSessionRepository struct {
	rdb *redis.Client
}

func NewRedisSessionRepository(rdb *redis.Client) SessionRepository {
	return &redisSessionRepository{rdb: rdb}
}

func sessionKey(id string) string      { return "session:" + id }
func userIndexKey(userID string) string { return "user_sessions:" + userID }

// touchScript sets last_activity to max(stored, ARGV[1]) and refreshes
// the TTL, as one atomic step. Concurrent touches are commutative: the
// timestamp can only move forward.
var touchScript = redis.NewScript(`
    if redis.call("exists", KEYS[1]) == 0 then
        return 0
    end
    local stored = tonumber(redis.call("hget", KEYS[1], "last_activity")) or 0
    local now = tonumber(ARGV[1])
    if now > stored then
        redis.call("hset", KEYS[1], "last_activity", ARGV[1])
    end
    redis.call("pexpire", KEYS[1], ARGV[2])
    return 1
`)

// deactivateScript flips the active flag only while the hash still
// exists. A plain exists-then-HSET pair races with key expiry: HSET on
// a just-reclaimed key would resurrect it as a TTL-less fragment with
// no timestamps. Deactivating an already-gone session stays a no-op.
var deactivateScript = redis.NewScript(`
    if redis.call("exists", KEYS[1]) == 0 then
        return 0
    end
    redis.call("hset", KEYS[1], "active", "0")
    return 1
`)

func (r *redisSessionRepository) Save(ctx context.Context, s *model.Session, ttl time.Duration) error {
	active := "0"
	if s.IsActive {
		active = "1"
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, sessionKey(s.ID), map[string]interface{}{
		"user_id":       s.UserID,
		"token":         s.Token,
		"state":         s.State,
		"created_at":    strconv.FormatInt(s.CreatedAt.UnixNano(), 10),
		"last_activity": strconv.FormatInt(s.LastActivity.UnixNano(), 10),
		"active":        active,
	})
	pipe.PExpire(ctx, sessionKey(s.ID), ttl)
	pipe.SAdd(ctx, userIndexKey(s.UserID), s.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisSessionRepository.Save: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Find(ctx context.Context, id string) (*model.Session, error) {
	fields, err := r.rdb.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisSessionRepository.Find: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrSessionNotFound
	}
	return sessionFromFields(id, fields)
}

func (r *redisSessionRepository) Touch(ctx context.Context, id string, now time.Time, ttl time.Duration) error {
	found, err := touchScript.Run(ctx, r.rdb, []string{sessionKey(id)},
		now.UnixNano(), ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redisSessionRepository.Touch: %w", err)
	}
	if found == 0 {
		return common.ErrSessionNotFound
	}
	return nil
}

func (r *redisSessionRepository) Update(ctx context.Context, id string, token, state *string, now time.Time, ttl time.Duration) error {
	fields := map[string]interface{}{}
	if token != nil {
		fields["token"] = *token
	}
	if state != nil {
		fields["state"] = *state
	}
	if len(fields) > 0 {
		if err := r.rdb.HSet(ctx, sessionKey(id), fields).Err(); err != nil {
			return fmt.Errorf("redisSessionRepository.Update: %w", err)
		}
	}
	return r.Touch(ctx, id, now, ttl)
}

func (r *redisSessionRepository) Deactivate(ctx context.Context, id string) error {
	if err := deactivateScript.Run(ctx, r.rdb, []string{sessionKey(id)}).Err(); err != nil {
		return fmt.Errorf("redisSessionRepository.Deactivate: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) ListByUser(ctx context.Context, userID string) ([]model.Session, error) {
	ids, err := r.rdb.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisSessionRepository.ListByUser: %w", err)
	}

	sessions := []model.Session{}
	for _, id := range ids {
		fields, err := r.rdb.HGetAll(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redisSessionRepository.ListByUser hgetall: %w", err)
		}
		if len(fields) == 0 {
			continue // Expired and reclaimed; the sweeper prunes the index
		}
		s, err := sessionFromFields(id, fields)
		if err != nil {
			// One malformed hash must not poison the whole listing;
			// drop it from the index and keep going.
			r.rdb.SRem(ctx, userIndexKey(userID), id)
			continue
		}
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func (r *redisSessionRepository) PruneDeadIndexEntries(ctx context.Context) (int, error) {
	pruned := 0
	iter := r.rdb.Scan(ctx, 0, userIndexKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := r.rdb.SMembers(ctx, indexKey).Result()
		if err != nil {
			return pruned, fmt.Errorf("redisSessionRepository.PruneDeadIndexEntries smembers: %w", err)
		}
		for _, id := range ids {
			exists, err := r.rdb.Exists(ctx, sessionKey(id)).Result()
			if err != nil {
				return pruned, fmt.Errorf("redisSessionRepository.PruneDeadIndexEntries exists: %w", err)
			}
			if exists == 0 {
				if err := r.rdb.SRem(ctx, indexKey, id).Err(); err != nil {
					return pruned, fmt.Errorf("redisSessionRepository.PruneDeadIndexEntries srem: %w", err)
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("redisSessionRepository.PruneDeadIndexEntries scan: %w", err)
	}
	return pruned, nil
}

func sessionFromFields(id string, fields map[string]string) (*model.Session, error) {
	createdNanos, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad created_at: %w", id, err)
	}
	activityNanos, err := strconv.ParseInt(fields["last_activity"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad last_activity: %w", id, err)
	}
	return &model.Session{
		ID:           id,
		UserID:       fields["user_id"],
		Token:        fields["token"],
		State:        fields["state"],
		CreatedAt:    time.Unix(0, createdNanos).UTC(),
		LastActivity: time.Unix(0, activityNanos).UTC(),
		IsActive:     fields["active"] == "1",
	}, nil
}
