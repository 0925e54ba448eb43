package compiler

import (
	"context"

	"github.com/roach88/morphc/internal/ir"
)

// ChannelStore is the host scene the compiler reads from and attaches to.
//
// Implementations must make Commit atomic: either every attachment of the
// call is applied or none is. A nil Driver in an attachment detaches.
type ChannelStore interface {
	// ResolveChannel returns the channel's id, creating it if absent.
	ResolveChannel(ctx context.Context, name string) (ir.ChannelID, error)

	// ResolveJoint looks up a joint by canonical name. A miss wraps ir.ErrNotFound.
	ResolveJoint(ctx context.Context, name string) (ir.JointID, error)

	// JointParent returns the stored parent of id. The session checks it
	// against its hierarchy snapshot before writing a reparent back.
	JointParent(ctx context.Context, id ir.JointID) (ir.JointID, error)

	// Hierarchy returns a snapshot of the joint tree.
	Hierarchy(ctx context.Context) (*ir.Hierarchy, error)

	ReparentJoint(ctx context.Context, id, parent ir.JointID) error

	// BrokenCycles returns every pair recorded by MarkCycleBroken.
	BrokenCycles(ctx context.Context) ([]ir.JointPair, error)

	// MarkCycleBroken records that a dependency cycle between the pair was
	// resolved by reparenting. Recording a pair twice is a no-op.
	MarkCycleBroken(ctx context.Context, pair ir.JointPair) error

	// AttachedDriver returns the driver currently on target, if any.
	AttachedDriver(ctx context.Context, target ir.TargetRef) (ir.CompiledDriver, bool, error)

	// InstallAdjuster creates a multiplicative adjuster channel with the
	// given initial value. An existing channel is returned unchanged.
	InstallAdjuster(ctx context.Context, name string, value float64) (ir.ChannelID, error)

	// Commit applies attachments. Channel targets that do not exist yet
	// are created.
	Commit(ctx context.Context, attachments []ir.Attachment) error

	// UnitFactor converts asset units to runtime units for kind.
	UnitFactor(kind ir.TransformKind) float64
}
