// Package audit records every mutating action against the audit_log table.
package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Sink records mutating actions. Failures are reported to the caller, which
// treats them as non-fatal.
type Sink interface {
	Record(ctx context.Context, actorID *string, action, resource, resourceID string, details map[string]any) error
}

type pgSink struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewSink builds a Postgres-backed audit sink.
func NewSink(pool *pgxpool.Pool, logger *zap.Logger) Sink {
	return &pgSink{pool: pool, logger: logger}
}

func (s *pgSink) Record(ctx context.Context, actorID *string, action, resource, resourceID string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		payload = []byte("{}")
	}
	const query = `
        INSERT INTO audit_log (actor_id, action, resource, resource_id, details)
        VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.pool.Exec(ctx, query, actorID, action, resource, resourceID, payload); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.String("resource_id", resourceID),
			zap.Error(err))
		return err
	}
	return nil
}

// NopSink discards audit records.
type NopSink struct{}

func (NopSink) Record(context.Context, *string, string, string, string, map[string]any) error {
	return nil
}
