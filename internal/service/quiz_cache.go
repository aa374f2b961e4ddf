package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/config"
	"github.com/NTA1210/learning-management-system-sub002/internal/model"
)

const quizPayloadTTL = 5 * time.Minute

// QuizPayloadCache caches the student-facing quiz payload so the jsonb
// snapshot is not re-read and re-stripped on every fetch while a quiz is
// live. Misses and cache errors are equivalent; callers always fall back
// to the store.
type QuizPayloadCache interface {
	Get(ctx context.Context, quizID string) (*model.StudentQuiz, bool)
	Set(ctx context.Context, quizID string, payload *model.StudentQuiz)
	Invalidate(ctx context.Context, quizID string)
}

// RedisQuizPayloadCache implements QuizPayloadCache on Redis.
type RedisQuizPayloadCache struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisQuizPayloadCache creates a new RedisQuizPayloadCache.
func NewRedisQuizPayloadCache(rdb *redis.Client, log zerolog.Logger) *RedisQuizPayloadCache {
	return &RedisQuizPayloadCache{
		rdb: rdb,
		log: log.With().Str("component", "quiz_cache").Logger(),
	}
}

func (c *RedisQuizPayloadCache) Get(ctx context.Context, quizID string) (*model.StudentQuiz, bool) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(quizID)).Bytes()
	if err != nil {
		return nil, false
	}
	var payload model.StudentQuiz
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Corrupt cached quiz payload")
		return nil, false
	}
	return &payload, true
}

func (c *RedisQuizPayloadCache) Set(ctx context.Context, quizID string, payload *model.StudentQuiz) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.log.Error().Err(err).Msg("Marshal quiz payload")
		return
	}
	if err := c.rdb.Set(ctx, config.CacheKey.QuizPayloadKey(quizID), raw, quizPayloadTTL).Err(); err != nil {
		c.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Cache quiz payload failed")
	}
}

func (c *RedisQuizPayloadCache) Invalidate(ctx context.Context, quizID string) {
	if err := c.rdb.Del(ctx, config.CacheKey.QuizPayloadKey(quizID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Invalidate quiz payload failed")
	}
}

// NoopQuizPayloadCache always misses. Used in tests.
type NoopQuizPayloadCache struct{}

func (NoopQuizPayloadCache) Get(context.Context, string) (*model.StudentQuiz, bool) { return nil, false }
func (NoopQuizPayloadCache) Set(context.Context, string, *model.StudentQuiz)        {}
func (NoopQuizPayloadCache) Invalidate(context.Context, string)                     {}
