package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/bossom/bossom/internal/domain/audit"
)

// Schema is the audit_logs table this repository writes to
const Schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
  id            CHAR(36)     NOT NULL PRIMARY KEY,
  action        VARCHAR(32)  NOT NULL,
  resource_type VARCHAR(64)  NOT NULL,
  resource_id   VARCHAR(64)  NOT NULL,
  new_values    JSON         NOT NULL,
  ip_address    VARCHAR(64)  NOT NULL,
  user_agent    VARCHAR(512) NOT NULL,
  created_at    DATETIME(6)  NOT NULL,
  INDEX idx_audit_resource (resource_type, resource_id, created_at)
)`

// column widths of the VARCHAR columns above; strict mode rejects longer values
const (
	idColumnWidth        = 64
	userAgentColumnWidth = 512
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

// EnsureSchema creates audit_logs when missing
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

func (r *AuditRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO audit_logs
  (id, action, resource_type, resource_id, new_values, ip_address, user_agent, created_at)
VALUES (?,?,?,?,?,?,?,?)
`
	values, err := encodeValues(e.NewValues)
	if err != nil {
		return err
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		e.ID, string(e.Action),
		clip(dashIfEmpty(e.ResourceType), idColumnWidth),
		clip(dashIfEmpty(e.ResourceID), idColumnWidth),
		values,
		clip(e.IPAddress, idColumnWidth),
		clip(e.UserAgent, userAgentColumnWidth),
		created)
	return err
}

func (r *AuditRepository) ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, action, resource_type, resource_id, new_values, ip_address, user_agent, created_at
FROM audit_logs
WHERE resource_type = ? AND resource_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
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
		e.NewValues = decodeValues(values)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// encodeValues always yields a JSON object, "{}" for nil
func encodeValues(v map[string]any) (string, error) {
	if len(v) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeValues keeps unreadable payloads under "raw" instead of failing the listing
func decodeValues(b []byte) map[string]any {
	if len(b) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"raw": string(b)}
	}
	return m
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// clip cuts s to n characters, VARCHAR widths count runes not bytes
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
