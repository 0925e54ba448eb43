package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/morphc/internal/ir"
)

// ResolveChannel returns the channel id, creating the channel if absent.
// Uses ON CONFLICT DO NOTHING so an existing channel keeps its value.
func (s *Store) ResolveChannel(ctx context.Context, name string) (ir.ChannelID, error) {
	if name == "" {
		return "", fmt.Errorf("resolve channel: empty name")
	}
	if err := ensureChannel(ctx, s.db, name, 0, s.clock.Next()); err != nil {
		return "", fmt.Errorf("resolve channel %q: %w", name, err)
	}
	return ir.ChannelID(name), nil
}

// InstallAdjuster creates an adjuster channel at value if it does not exist.
func (s *Store) InstallAdjuster(ctx context.Context, name string, value float64) (ir.ChannelID, error) {
	if err := ensureChannel(ctx, s.db, name, value, s.clock.Next()); err != nil {
		return "", fmt.Errorf("install adjuster %q: %w", name, err)
	}
	return ir.ChannelID(name), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureChannel(ctx context.Context, db execer, name string, value float64, seq int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO channels (name, value, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, value, seq)
	return err
}

// SetChannel creates or updates a channel's value and limits.
func (s *Store) SetChannel(ctx context.Context, name string, value float64, lo, hi *float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (name, value, min, max, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, min = excluded.min, max = excluded.max
	`, name, value, nullFloat(lo), nullFloat(hi), s.clock.Next())
	if err != nil {
		return fmt.Errorf("set channel %q: %w", name, err)
	}
	return nil
}

// ResolveJoint looks a joint up by name.
func (s *Store) ResolveJoint(ctx context.Context, name string) (ir.JointID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM joints WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.NoJoint, fmt.Errorf("joint %q: %w", name, ir.ErrNotFound)
	}
	if err != nil {
		return ir.NoJoint, fmt.Errorf("resolve joint %q: %w", name, err)
	}
	return ir.JointID(id), nil
}

// JointParent returns the parent of id, or ir.NoJoint for a root.
func (s *Store) JointParent(ctx context.Context, id ir.JointID) (ir.JointID, error) {
	var parent sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT parent FROM joints WHERE id = ?`, int64(id)).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.NoJoint, fmt.Errorf("joint %d: %w", id, ir.ErrNotFound)
	}
	if err != nil {
		return ir.NoJoint, fmt.Errorf("joint parent %d: %w", id, err)
	}
	if !parent.Valid {
		return ir.NoJoint, nil
	}
	return ir.JointID(parent.Int64), nil
}

// Hierarchy loads the joint arena. Ids are contiguous from 0.
func (s *Store) Hierarchy(ctx context.Context) (*ir.Hierarchy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, parent FROM joints ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query joints: %w", err)
	}
	defer rows.Close()

	h := ir.NewHierarchy()
	for rows.Next() {
		var (
			id     int64
			name   string
			parent sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &parent); err != nil {
			return nil, fmt.Errorf("scan joint: %w", err)
		}
		if id != int64(h.Len()) {
			return nil, fmt.Errorf("joint ids not contiguous at %d", id)
		}
		p := ir.NoJoint
		if parent.Valid {
			p = ir.JointID(parent.Int64)
		}
		h.Add(name, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate joints: %w", err)
	}
	return h, nil
}

// AddJoint appends a joint under parent (ir.NoJoint for a root).
func (s *Store) AddJoint(ctx context.Context, name string, parent ir.JointID) (ir.JointID, error) {
	var id ir.JointID
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var n int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM joints`).Scan(&n); err != nil {
			return err
		}
		id = ir.JointID(n)
		_, err := tx.ExecContext(ctx, `INSERT INTO joints (id, name, parent) VALUES (?, ?, ?)`,
			n, name, nullJoint(parent))
		return err
	})
	if err != nil {
		return ir.NoJoint, fmt.Errorf("add joint %q: %w", name, err)
	}
	return id, nil
}

// ReparentJoint moves id under parent.
func (s *Store) ReparentJoint(ctx context.Context, id, parent ir.JointID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE joints SET parent = ? WHERE id = ?`, nullJoint(parent), int64(id))
	if err != nil {
		return fmt.Errorf("reparent joint %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reparent joint %d: %w", id, ir.ErrNotFound)
	}
	return nil
}

// BrokenCycles returns recorded pairs in the order they were broken.
func (s *Store) BrokenCycles(ctx context.Context) ([]ir.JointPair, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT driven, driver FROM broken_cycles ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query broken cycles: %w", err)
	}
	defer rows.Close()

	var pairs []ir.JointPair
	for rows.Next() {
		var driven, driver int64
		if err := rows.Scan(&driven, &driver); err != nil {
			return nil, fmt.Errorf("scan broken cycle: %w", err)
		}
		pairs = append(pairs, ir.JointPair{Driven: ir.JointID(driven), Driver: ir.JointID(driver)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broken cycles: %w", err)
	}
	return pairs, nil
}

// MarkCycleBroken records pair. The first record wins.
func (s *Store) MarkCycleBroken(ctx context.Context, pair ir.JointPair) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broken_cycles (driven, driver, seq) VALUES (?, ?, ?)
		ON CONFLICT (driven, driver) DO NOTHING
	`, int64(pair.Driven), int64(pair.Driver), s.clock.Next())
	if err != nil {
		return fmt.Errorf("mark cycle %d <- %d: %w", pair.Driven, pair.Driver, err)
	}
	return nil
}

// SetTransform sets an undriven local transform component.
func (s *Store) SetTransform(ctx context.Context, id ir.JointID, kind ir.TransformKind, axis ir.Axis, v float64) error {
	col, err := transformColumn(kind, axis)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE joints SET %s = ? WHERE id = ?`, col), v, int64(id))
	if err != nil {
		return fmt.Errorf("set transform %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set transform %d: %w", id, ir.ErrNotFound)
	}
	return nil
}

func transformColumn(kind ir.TransformKind, axis ir.Axis) (string, error) {
	if axis < 0 || axis > 2 {
		return "", fmt.Errorf("invalid axis %d", axis)
	}
	prefix := map[ir.TransformKind]string{ir.Translation: "t", ir.Rotation: "r", ir.Scale: "s"}[kind]
	if prefix == "" {
		return "", fmt.Errorf("invalid transform kind %d", kind)
	}
	return prefix + axis.String(), nil
}

func nullJoint(j ir.JointID) sql.NullInt64 {
	if j == ir.NoJoint {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(j), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
