package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/NTA1210/learning-management-system-sub002/internal/config"
	"github.com/NTA1210/learning-management-system-sub002/internal/service"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// AuditWorker drains the audit queue and bulk-inserts attempt events into
// PostgreSQL. Audit persistence is write-behind so the student-facing
// request path never waits on the events table.
type AuditWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAuditWorker creates a new AuditWorker.
func NewAuditWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "audit_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; cancel the context
// to stop. Buffered events are flushed before exit.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	buffer := make([]*service.AuditEvent, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlush = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAuditQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				// Cancellation surfaces here when blocked in BLPop;
				// flush the buffer and drain like the select arm does.
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var ev service.AuditEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			w.log.Error().Err(err).Msg("Dropping malformed audit event")
			continue
		}
		buffer = append(buffer, &ev)
	}
}

// flushSafe attempts bulk insert, then row-by-row recovery with requeue.
func (w *AuditWorker) flushSafe(ctx context.Context, batch []*service.AuditEvent) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *AuditWorker) bulkInsert(ctx context.Context, batch []*service.AuditEvent) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, []interface{}{
			ev.AttemptID, ev.QuizID, ev.StudentID, string(ev.Action),
			ev.IPAddress, ev.UserAgent, ev.At,
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_events"},
		[]string{"attempt_id", "quiz_id", "student_id", "action", "ip_address", "user_agent", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *AuditWorker) fallbackInsert(ctx context.Context, batch []*service.AuditEvent) {
	requeueList := make([]*service.AuditEvent, 0)

	for _, ev := range batch {
		_, err := w.pool.Exec(ctx,
			`INSERT INTO attempt_events (attempt_id, quiz_id, student_id, action, ip_address, user_agent, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ev.AttemptID, ev.QuizID, ev.StudentID, string(ev.Action),
			ev.IPAddress, ev.UserAgent, ev.At,
		)
		if err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", ev.AttemptID.String()).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, ev)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *AuditWorker) requeue(ctx context.Context, items []*service.AuditEvent) {
	pipe := w.rdb.Pipeline()
	for _, ev := range items {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.PersistAuditQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue audit events. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed audit events")
	// Back off if the database is down hard.
	time.Sleep(2 * time.Second)
}

func (w *AuditWorker) shutdown(buffer []*service.AuditEvent) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}

	// Drain whatever still sits in the queue so nothing is lost on restart
	// of a quiet system; anything left after an error stays queued.
	for {
		raw, err := w.rdb.LPop(shutdownCtx, config.WorkerKey.PersistAuditQueue).Result()
		if err != nil {
			break
		}
		var ev service.AuditEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		w.flushSafe(shutdownCtx, []*service.AuditEvent{&ev})
	}

	w.log.Info().Msg("Worker stopped")
}
