// Package repository implements the persistence adapters the resolver core
// depends on through internal/core/ports.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nilroute/resolverd/internal/core/domain"
)

// AuditPostgres implements ports.AuditRepository by appending one row per
// completed resolution to resolution_log. It never reads the table back:
// nothing on the query path depends on a prior row existing, so this can
// never drift into a disguised answer cache.
type AuditPostgres struct {
	db *sql.DB
}

// NewAuditPostgres wraps an already-opened database handle. Callers
// typically open it with sql.Open("pgx", dsn) using the pgx stdlib driver.
func NewAuditPostgres(db *sql.DB) *AuditPostgres {
	return &AuditPostgres{db: db}
}

func (r *AuditPostgres) Record(ctx context.Context, entry domain.ResolutionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO resolution_log
		(id, correlation_id, client_ip, qname, qtype, rcode, hops, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.CorrelationID, entry.ClientIP, entry.QName, entry.QType,
		entry.RCode, entry.Hops, entry.DurationMS)
	if err != nil {
		return fmt.Errorf("audit: record resolution: %w", err)
	}
	return nil
}

func (r *AuditPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Schema is the DDL audit_postgres.go expects to already exist. Migrations
// are run out of band; this is documentation of the shape, not executed.
const Schema = `
CREATE TABLE IF NOT EXISTS resolution_log (
	id             UUID PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	client_ip      TEXT NOT NULL,
	qname          TEXT NOT NULL,
	qtype          TEXT NOT NULL,
	rcode          SMALLINT NOT NULL,
	hops           SMALLINT NOT NULL,
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS resolution_log_created_at_idx ON resolution_log (created_at);
`
