package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/morphc/internal/ir"
	"github.com/roach88/morphc/internal/scene"
)

// ImportScene adds the joints and channels of a scene file. Existing joints
// keep their id and get the file's parent and transform; existing channels
// get the file's value and limits.
func (s *Store) ImportScene(ctx context.Context, file scene.File) error {
	seq := s.clock.Next()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, js := range file.Joints {
			if err := importJoint(ctx, tx, js); err != nil {
				return fmt.Errorf("import joint %q: %w", js.Name, err)
			}
		}
		for _, c := range file.Channels {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO channels (name, value, min, max, seq)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(name) DO UPDATE SET value = excluded.value, min = excluded.min, max = excluded.max
			`, c.Name, c.Value, nullFloat(c.Min), nullFloat(c.Max), seq)
			if err != nil {
				return fmt.Errorf("import channel %q: %w", c.Name, err)
			}
		}
		return nil
	})
}

func importJoint(ctx context.Context, tx *sql.Tx, js scene.JointSpec) error {
	parent := sql.NullInt64{}
	if js.Parent != "" {
		var pid int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM joints WHERE name = ?`, js.Parent).Scan(&pid); err != nil {
			return fmt.Errorf("parent %q: %w", js.Parent, ir.ErrNotFound)
		}
		parent = sql.NullInt64{Int64: pid, Valid: true}
	}
	t, err := triple(js.Translation, 0)
	if err != nil {
		return err
	}
	r, err := triple(js.Rotation, 0)
	if err != nil {
		return err
	}
	sc, err := triple(js.Scale, 1)
	if err != nil {
		return err
	}

	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM joints`).Scan(&n); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO joints (id, name, parent, tx, ty, tz, rx, ry, rz, sx, sy, sz)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			parent = excluded.parent,
			tx = excluded.tx, ty = excluded.ty, tz = excluded.tz,
			rx = excluded.rx, ry = excluded.ry, rz = excluded.rz,
			sx = excluded.sx, sy = excluded.sy, sz = excluded.sz
	`, n, js.Name, parent, t[0], t[1], t[2], r[0], r[1], r[2], sc[0], sc[1], sc[2])
	return err
}

func triple(v []float64, def float64) ([3]float64, error) {
	switch len(v) {
	case 0:
		return [3]float64{def, def, def}, nil
	case 3:
		return [3]float64{v[0], v[1], v[2]}, nil
	}
	return [3]float64{}, fmt.Errorf("transform needs 3 components, got %d", len(v))
}

// Snapshot copies the store into an in-memory scene, drivers included, for
// evaluation.
func (s *Store) Snapshot(ctx context.Context) (*scene.Memory, error) {
	m := scene.NewMemory(s.units)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, parent, tx, ty, tz, rx, ry, rz, sx, sy, sz
		FROM joints ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("snapshot joints: %w", err)
	}
	type jointRow struct {
		parent sql.NullInt64
		local  [3][3]float64
	}
	var joints []jointRow
	for rows.Next() {
		var (
			id   int64
			name string
			jr   jointRow
		)
		l := &jr.local
		if err := rows.Scan(&id, &name, &jr.parent,
			&l[0][0], &l[0][1], &l[0][2],
			&l[1][0], &l[1][1], &l[1][2],
			&l[2][0], &l[2][1], &l[2][2]); err != nil {
			rows.Close()
			return nil, fmt.Errorf("snapshot joints: %w", err)
		}
		if _, err := m.AddJoint(name, ""); err != nil {
			rows.Close()
			return nil, err
		}
		joints = append(joints, jr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot joints: %w", err)
	}
	for i, jr := range joints {
		j := ir.JointID(i)
		if jr.parent.Valid {
			if err := m.ReparentJoint(ctx, j, ir.JointID(jr.parent.Int64)); err != nil {
				return nil, err
			}
		}
		for kind := range jr.local {
			for axis, v := range jr.local[kind] {
				if err := m.SetTransform(j, ir.TransformKind(kind), ir.Axis(axis), v); err != nil {
					return nil, err
				}
			}
		}
	}

	crows, err := s.db.QueryContext(ctx, `SELECT name, value, min, max FROM channels ORDER BY seq ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("snapshot channels: %w", err)
	}
	for crows.Next() {
		var (
			c      scene.Channel
			lo, hi sql.NullFloat64
		)
		if err := crows.Scan(&c.Name, &c.Value, &lo, &hi); err != nil {
			crows.Close()
			return nil, fmt.Errorf("snapshot channels: %w", err)
		}
		if lo.Valid {
			c.Min = &lo.Float64
		}
		if hi.Valid {
			c.Max = &hi.Float64
		}
		m.AddChannel(c)
	}
	crows.Close()
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot channels: %w", err)
	}

	records, err := s.Drivers(ctx)
	if err != nil {
		return nil, err
	}
	atts := make([]ir.Attachment, len(records))
	for i, r := range records {
		atts[i] = ir.Attachment{Target: r.Target, Driver: r.Driver}
	}
	if err := m.Commit(ctx, atts); err != nil {
		return nil, fmt.Errorf("snapshot drivers: %w", err)
	}

	broken, err := s.BrokenCycles(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range broken {
		if err := m.MarkCycleBroken(ctx, p); err != nil {
			return nil, fmt.Errorf("snapshot cycles: %w", err)
		}
	}
	return m, nil
}
