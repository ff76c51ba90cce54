package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fileflow/models"

	"github.com/redis/go-redis/v9"
)

// recentLimit bounds the shared record list.
const recentLimit = 1000

// statusTTL is how long a job status hash outlives the job.
const statusTTL = 7 * 24 * time.Hour

// RedisSink publishes a status hash per job and a capped list of recent
// records for dashboards.
type RedisSink struct {
	client *redis.Client
	prefix func(string) string
}

// NewRedisSink wraps client. prefix namespaces every key and may be nil.
func NewRedisSink(client *redis.Client, prefix func(string) string) *RedisSink {
	if prefix == nil {
		prefix = func(k string) string { return k }
	}
	return &RedisSink{client: client, prefix: prefix}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) statusKey(id models.JobID) string {
	return s.prefix(fmt.Sprintf("conversion:status:%s", id))
}

func (s *RedisSink) listKey() string {
	return s.prefix("conversion:records")
}

func statusFields(r models.ConversionRecord) map[string]interface{} {
	fields := map[string]interface{}{
		"state":           string(r.State),
		"conversion_type": string(r.ConversionType),
		"duration_ms":     r.DurationMs,
		"completed_at":    r.CompletedAt.Format(time.RFC3339),
	}
	if r.Succeeded() {
		fields["output_file_id"] = string(r.OutputFileID)
		fields["output_bytes"] = r.OutputBytes
	} else {
		fields["error_kind"] = string(r.ErrorKind)
		fields["error"] = r.ErrorMessage
	}
	return fields
}

// Write sets the status hash and pushes the record onto the recent list.
func (s *RedisSink) Write(ctx context.Context, r models.ConversionRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	key := s.statusKey(r.JobID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, statusFields(r))
	pipe.Expire(ctx, key, statusTTL)
	pipe.LPush(ctx, s.listKey(), data)
	pipe.LTrim(ctx, s.listKey(), 0, recentLimit-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
