package proctor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-candidate/internal/config"
	"github.com/stemsi/exstem-candidate/internal/model"
)

// AuditLimit caps how many capture records are retained.
const AuditLimit = 200

// Audit keeps a capped trail of capture outcomes, newest first.
type Audit interface {
	Record(ctx context.Context, rec model.CaptureRecord) error
	Recent(ctx context.Context, n int) ([]model.CaptureRecord, error)
}

// RedisAudit stores records in a capped Redis list.
type RedisAudit struct {
	rdb *redis.Client
	key string
}

// NewRedisAudit creates an audit trail for one exam type.
func NewRedisAudit(rdb *redis.Client, examType model.ExamType) *RedisAudit {
	return &RedisAudit{rdb: rdb, key: config.CacheKey.CaptureAuditKey(string(examType))}
}

func (a *RedisAudit) Record(ctx context.Context, rec model.CaptureRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal capture record: %w", err)
	}

	pipe := a.rdb.TxPipeline()
	pipe.LPush(ctx, a.key, raw)
	pipe.LTrim(ctx, a.key, 0, AuditLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store capture record: %w", err)
	}
	return nil
}

func (a *RedisAudit) Recent(ctx context.Context, n int) ([]model.CaptureRecord, error) {
	if n <= 0 || n > AuditLimit {
		n = AuditLimit
	}
	items, err := a.rdb.LRange(ctx, a.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read capture records: %w", err)
	}

	out := make([]model.CaptureRecord, 0, len(items))
	for _, item := range items {
		var rec model.CaptureRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// MemoryAudit is the in-process fallback when Redis is not configured.
type MemoryAudit struct {
	mu      sync.Mutex
	records []model.CaptureRecord
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (a *MemoryAudit) Record(_ context.Context, rec model.CaptureRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append(a.records, rec)
	if len(a.records) > AuditLimit {
		a.records = a.records[len(a.records)-AuditLimit:]
	}
	return nil
}

func (a *MemoryAudit) Recent(_ context.Context, n int) ([]model.CaptureRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 || n > len(a.records) {
		n = len(a.records)
	}
	out := make([]model.CaptureRecord, 0, n)
	for i := len(a.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.records[i])
	}
	return out, nil
}
