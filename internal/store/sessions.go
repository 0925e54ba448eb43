package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/morphc/internal/compiler"
)

// SessionRecord is one logged import.
type SessionRecord struct {
	ID      string
	Seq     int64
	Targets int
	Failed  int
	Report  *compiler.Report
}

// WriteSession appends a session report.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a report is logged once.
func (s *Store) WriteSession(ctx context.Context, r *compiler.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, seq, targets, failed, report)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.SessionID, s.clock.Next(), len(r.Targets), len(r.Failed()), string(data))
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Sessions returns the logged sessions, oldest first.
//
// Returns empty slice (not nil) if no sessions exist.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, targets, failed, report
		FROM sessions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	records := []SessionRecord{}
	for rows.Next() {
		var (
			rec  SessionRecord
			data string
		)
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Targets, &rec.Failed, &data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Report = &compiler.Report{}
		if err := json.Unmarshal([]byte(data), rec.Report); err != nil {
			return nil, fmt.Errorf("session %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return records, nil
}
