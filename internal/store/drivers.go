package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/morphc/internal/ir"
)

// AttachedDriver returns the driver on target, if any.
func (s *Store) AttachedDriver(ctx context.Context, t ir.TargetRef) (ir.CompiledDriver, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM drivers WHERE target_key = ?`, t.Key()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("attached driver %s: %w", t.Key(), err)
	}
	d, err := ir.UnmarshalDriver([]byte(payload))
	if err != nil {
		return nil, false, fmt.Errorf("attached driver %s: %w", t.Key(), err)
	}
	return d, true, nil
}

// Commit applies every attachment in one transaction. A nil driver
// detaches; channel targets are created on demand.
func (s *Store) Commit(ctx context.Context, attachments []ir.Attachment) error {
	seq := s.clock.Next()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range attachments {
			if err := commitOne(ctx, tx, a, seq); err != nil {
				return fmt.Errorf("%s: %w", a.Target.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func commitOne(ctx context.Context, tx *sql.Tx, a ir.Attachment, seq int64) error {
	key := a.Target.Key()
	if a.Driver == nil {
		_, err := tx.ExecContext(ctx, `DELETE FROM drivers WHERE target_key = ?`, key)
		return err
	}

	var (
		channel sql.NullString
		joint   sql.NullInt64
	)
	switch a.Target.Kind {
	case ir.ChannelTarget:
		if err := ensureChannel(ctx, tx, string(a.Target.Channel), 0, seq); err != nil {
			return err
		}
		channel = sql.NullString{String: string(a.Target.Channel), Valid: true}
	case ir.JointChannelTarget:
		joint = nullJoint(a.Target.Joint)
	}

	payload, err := ir.MarshalDriver(a.Driver)
	if err != nil {
		return err
	}
	hash, err := ir.DriverHash(a.Driver)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO drivers
		(target_key, target_kind, channel, joint, transform, axis, driver_kind, payload, hash, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_key) DO UPDATE SET
			driver_kind = excluded.driver_kind,
			payload = excluded.payload,
			hash = excluded.hash,
			seq = CASE WHEN drivers.hash = excluded.hash THEN drivers.seq ELSE excluded.seq END
	`,
		key,
		int(a.Target.Kind),
		channel,
		joint,
		int(a.Target.Transform),
		int(a.Target.Axis),
		string(a.Driver.Kind()),
		string(payload),
		hash,
		seq,
	)
	return err
}

// DriverRecord is one stored driver.
type DriverRecord struct {
	Target ir.TargetRef
	Driver ir.CompiledDriver
	Hash   string
	Seq    int64
}

// Drivers lists every stored driver, channel targets first, by key.
//
// Returns empty slice (not nil) if no drivers are attached.
func (s *Store) Drivers(ctx context.Context) ([]DriverRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_kind, channel, joint, transform, axis, payload, hash, seq
		FROM drivers
		ORDER BY target_kind ASC, target_key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query drivers: %w", err)
	}
	defer rows.Close()

	records := []DriverRecord{}
	for rows.Next() {
		var (
			kind, transform, axis int
			channel               sql.NullString
			joint                 sql.NullInt64
			payload               string
			rec                   DriverRecord
		)
		if err := rows.Scan(&kind, &channel, &joint, &transform, &axis, &payload, &rec.Hash, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		if ir.TargetKind(kind) == ir.ChannelTarget {
			rec.Target = ir.ChannelRef(ir.ChannelID(channel.String))
		} else {
			rec.Target = ir.JointRef(ir.JointID(joint.Int64), ir.TransformKind(transform), ir.Axis(axis))
		}
		if rec.Driver, err = ir.UnmarshalDriver([]byte(payload)); err != nil {
			return nil, fmt.Errorf("driver %s: %w", rec.Target.Key(), err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drivers: %w", err)
	}
	return records, nil
}
