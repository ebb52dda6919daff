package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// RedisKeyPrefix prefixes the per-user prediction hash.
const RedisKeyPrefix = "prediction:"

// RedisStore keeps one hash per user with one field per date.
type RedisStore struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A positive ttl expires a user's hash
// after its last write.
func NewRedisStore(rdb goredis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

var _ Store = (*RedisStore)(nil)

type redisValue struct {
	Risk       float64   `json:"risk"`
	Confidence *float64  `json:"confidence,omitempty"`
	Scorer     Scorer    `json:"scorer"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RedisKey returns the hash key holding a user's predictions.
func RedisKey(userID string) string {
	return RedisKeyPrefix + userID
}

// Get implements Store with one pipelined HMGET per user.
func (s *RedisStore) Get(ctx context.Context, userIDs []string, dates []time.Time) ([]Record, error) {
	if len(userIDs) == 0 || len(dates) == 0 {
		return nil, nil
	}
	fields := make([]string, len(dates))
	days := make([]time.Time, len(dates))
	for i, d := range dates {
		days[i] = calendar.Day(d)
		fields[i] = calendar.Format(d)
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*goredis.SliceCmd, len(userIDs))
	for i, u := range userIDs {
		cmds[i] = pipe.HMGet(ctx, RedisKey(u), fields...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	var out []Record
	for i, cmd := range cmds {
		for j, raw := range cmd.Val() {
			str, ok := raw.(string)
			if !ok {
				continue
			}
			var v redisValue
			if err := json.Unmarshal([]byte(str), &v); err != nil {
				return nil, fmt.Errorf("decode %s[%s]: %w", RedisKey(userIDs[i]), fields[j], err)
			}
			out = append(out, Record{
				UserID:     userIDs[i],
				Date:       days[j],
				Risk:       v.Risk,
				Confidence: v.Confidence,
				Scorer:     v.Scorer,
				UpdatedAt:  v.UpdatedAt,
			})
		}
	}
	return out, nil
}

// Put implements Store with one pipelined HSET per user.
func (s *RedisStore) Put(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	byUser := make(map[string][]any)
	var order []string
	for _, r := range records {
		raw, err := json.Marshal(redisValue{
			Risk:       r.Risk,
			Confidence: r.Confidence,
			Scorer:     r.Scorer,
			UpdatedAt:  r.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("encode prediction: %w", err)
		}
		if _, ok := byUser[r.UserID]; !ok {
			order = append(order, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], calendar.Format(r.Date), string(raw))
	}

	pipe := s.rdb.TxPipeline()
	for _, u := range order {
		key := RedisKey(u)
		pipe.HSet(ctx, key, byUser[u]...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}
