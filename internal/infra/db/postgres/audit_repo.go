package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	domain "github.com/bossom/bossom/internal/domain/audit"
)

// Schema mirrors the audit_logs table of the clinical database
const Schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
  id            UUID        PRIMARY KEY,
  action        TEXT        NOT NULL,
  resource_type TEXT        NOT NULL,
  resource_id   TEXT        NOT NULL,
  new_values    JSONB       NOT NULL DEFAULT '{}'::jsonb,
  ip_address    TEXT        NOT NULL DEFAULT '',
  user_agent    TEXT        NOT NULL DEFAULT '',
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs (resource_type, resource_id, created_at DESC);`

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates audit_logs when missing
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Save inserts an audit entry; a repeated id is ignored
func (r *AuditRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO audit_logs
  (id, action, resource_type, resource_id, new_values, ip_address, user_agent, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING;
`
	values := "{}"
	if len(e.NewValues) > 0 {
		b, err := json.Marshal(e.NewValues)
		if err != nil {
			return err
		}
		values = string(b)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Action), stringOrDash(e.ResourceType), stringOrDash(e.ResourceID),
		values, e.IPAddress, e.UserAgent, createdAt)
	return err
}

// ListByResource returns the newest entries of one resource first
func (r *AuditRepository) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, action, resource_type, resource_id, new_values, ip_address, user_agent, created_at
FROM audit_logs
WHERE resource_type=$1 AND resource_id=$2
ORDER BY created_at DESC, id DESC
LIMIT $3;
`
	rows, err := r.db.QueryContext(ctx, q, resourceType, resourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Entry
	for rows.Next() {
		var (
			e      domain.Entry
			action string
			values []byte
		)
		if err := rows.Scan(&e.ID, &action, &e.ResourceType, &e.ResourceID, &values, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		if len(values) > 0 {
			if err := json.Unmarshal(values, &e.NewValues); err != nil {
				e.NewValues = map[string]any{"raw": string(values)}
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
