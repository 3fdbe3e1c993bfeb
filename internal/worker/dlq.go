package worker

// dlq.go: Dead Letter Queue
// Outbound messages that fail after retry are parked here for manual replay.
// Uses a Redis list per source queue: dlq:{original_queue}

import (
	"context"
	"encoding/json"
	"time"

	"wavyai/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

// DLQ pushes entries to Redis. A DLQ without a client only logs.
type DLQ struct {
	rdb *redis.Client
	now func() time.Time
}

var _ infra.DeadLetterSink = (*DLQ)(nil)

func NewDLQ(rdb *redis.Client) *DLQ {
	return &DLQ{rdb: rdb, now: time.Now}
}

func (d *DLQ) entry(queue, jobType string, payload any, reason string, attempts int) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       raw,
		Reason:        reason,
		FailedAt:      d.now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	})
}

// DeadLetter never fails the caller; push errors are logged.
func (d *DLQ) DeadLetter(ctx context.Context, queue, jobType string, payload any, reason string, attempts int) {
	logger := log.With().Str("queue", queue).Str("job_type", jobType).Str("reason", reason).Int("attempts", attempts).Logger()

	if d == nil || d.rdb == nil {
		logger.Warn().Msg("dlq: no redis configured, dropping failed job")
		return
	}
	data, err := d.entry(queue, jobType, payload, reason, attempts)
	if err != nil {
		logger.Error().Err(err).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := d.rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		logger.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}
	logger.Warn().Msg("dlq: job moved to dead letter queue")
}

// Length returns the number of entries parked for queue.
func (d *DLQ) Length(ctx context.Context, queue string) (int64, error) {
	if d == nil || d.rdb == nil {
		return 0, infra.ErrNotConfigured
	}
	return d.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Peek returns up to n of the newest entries without removing them.
func (d *DLQ) Peek(ctx context.Context, queue string, n int64) ([]DLQEntry, error) {
	if d == nil || d.rdb == nil {
		return nil, infra.ErrNotConfigured
	}
	raws, err := d.rdb.LRange(ctx, DLQPrefix+queue, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raws))
	for _, raw := range raws {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("dlq: skipping unreadable entry")
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
