package audit

import (
	"database/sql"
	"fmt"
	"time"
)

type PostgresLogger struct {
	db      *sql.DB
	nowFunc func() time.Time
}

func NewPostgresLogger(db *sql.DB) (*PostgresLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	l := &PostgresLogger{db: db, nowFunc: time.Now}
	if err := l.ensureSchema(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *PostgresLogger) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS guard_audit_events (
	id UUID PRIMARY KEY,
	at TIMESTAMPTZ NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	target TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
)`
	if _, err := l.db.Exec(q); err != nil {
		return fmt.Errorf("ensure guard_audit_events schema: %w", err)
	}
	return nil
}

func (l *PostgresLogger) Log(e Event) error {
	e = stamp(e, l.nowFunc)
	const q = `
INSERT INTO guard_audit_events (id, at, actor, action, target, outcome, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := l.db.Exec(q, e.ID, e.At, e.Actor, e.Action, e.Target, e.Outcome, e.Detail); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (l *PostgresLogger) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, at, actor, action, target, outcome, detail
FROM guard_audit_events
ORDER BY at DESC
LIMIT $1`
	rows, err := l.db.Query(q, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.At, &e.Actor, &e.Action, &e.Target, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}
