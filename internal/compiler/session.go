package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/morphc/internal/asset"
	"github.com/roach88/morphc/internal/ir"
)

// Session is one import: assets are ingested, then compiled and committed
// together. A session is single-threaded and used once.
type Session struct {
	ID string

	store     ChannelStore
	opts      Options
	collector *TermCollector
	rest      *RestAccumulator
	report    *Report
	installed map[ir.JointID]bool
	compiled  bool
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	ids SessionIDGenerator
}

// WithIDGenerator sets the session id source (default UUIDv7).
func WithIDGenerator(g SessionIDGenerator) SessionOption {
	return func(c *sessionConfig) {
		c.ids = g
	}
}

// NewSession starts an import against store.
func NewSession(store ChannelStore, opts Options, options ...SessionOption) *Session {
	cfg := sessionConfig{ids: UUIDv7Generator{}}
	for _, o := range options {
		o(&cfg)
	}
	id := cfg.ids.Generate()
	s := &Session{
		ID:        id,
		store:     store,
		opts:      opts,
		collector: NewTermCollector(),
		rest:      NewRestAccumulator(),
		report:    newReport(id),
		installed: make(map[ir.JointID]bool),
	}
	if opts.AllRest {
		s.rest.ActivateAll()
	}
	return s
}

// Ingest adds assets to the session in order.
func (s *Session) Ingest(ctx context.Context, assets ...asset.Asset) error {
	if s.compiled {
		return errors.New("session already compiled")
	}
	for _, a := range assets {
		if err := s.ingestAsset(ctx, a); err != nil {
			return fmt.Errorf("ingest %s: %w", a.Name, err)
		}
	}
	return nil
}

// ActivateRest enables rest contributions for the named joint.
func (s *Session) ActivateRest(ctx context.Context, joint string) error {
	j, err := s.store.ResolveJoint(ctx, NormalizeJointName(joint, s.opts))
	if err != nil {
		return fmt.Errorf("activate rest %q: %w", joint, err)
	}
	s.rest.Activate(j)
	return nil
}

// Compile recovers attached drivers, breaks cycles, and compiles and
// commits every touched target. Per-target failures land in the report;
// the error is reserved for store failures.
func (s *Session) Compile(ctx context.Context) (*Report, error) {
	if s.compiled {
		return nil, errors.New("session already compiled")
	}
	s.compiled = true

	for _, name := range s.opts.RestJoints {
		if err := s.ActivateRest(ctx, name); err != nil {
			if !IsNotFound(err) {
				return nil, err
			}
			s.report.add(NewUnresolvedError(name, err))
		}
	}

	h, err := s.store.Hierarchy(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	for _, t := range s.rest.Targets() {
		s.collector.Touch(t)
	}
	targets := s.collector.Targets()
	slog.Info("compiling session", "session", s.ID, "targets", len(targets), "pending_rest", s.rest.Pending())

	merger := Merger{Store: s.store}
	for _, t := range targets {
		base := targetBase(h, t)
		rec, err := merger.Recover(ctx, t, base)
		if err != nil {
			return nil, err
		}
		for _, n := range rec.Notes {
			s.report.add(n)
		}
		s.collector.Merge(t, rec)

		// A rest channel is compiled only for targets that received rest
		// terms this session or already read one.
		_, hasRest := s.rest.terms.entries[t]
		if s.rest.Active(t) && (hasRest || rec.KeepRest) {
			restCh := RestChannel(base)
			rrec, err := merger.Recover(ctx, ir.ChannelRef(restCh), string(restCh))
			if err != nil {
				return nil, err
			}
			s.rest.terms.Merge(t, rrec)
		}
	}

	broken, err := s.store.BrokenCycles(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	breaker := NewCycleBreaker(h, broken...)
	reparents, problems := breaker.Break(s.collector, s.rest.terms)
	for _, r := range reparents {
		if err := s.writeReparent(ctx, r); err != nil {
			return nil, err
		}
	}
	s.report.Reparents = append(s.report.Reparents, reparents...)
	for _, p := range problems {
		s.report.add(p)
	}
	for _, c := range AnalyzeChannelCycles(s.collector) {
		s.report.add(&Error{Code: ErrCodeDependencyCycle, Message: c.Message})
		slog.Warn("channel loop", "path", c.Path)
	}

	synth := NewSumSynthesizer(s.opts)
	for _, t := range targets {
		comp, err := s.compileTarget(ctx, synth, h, t)
		if err != nil {
			var ce *Error
			if errors.As(err, &ce) {
				s.report.add(ce)
				slog.Error("target not compiled", "target", ce.Target, "code", ce.Code, "error", ce.Message)
				continue
			}
			return nil, err
		}
		if err := s.store.Commit(ctx, comp.Attachments); err != nil {
			return nil, fmt.Errorf("compile: commit %s: %w", targetBase(h, t), err)
		}
		res, err := s.result(h, comp)
		if err != nil {
			return nil, err
		}
		s.report.Targets = append(s.report.Targets, res)
		slog.Debug("target compiled", "target", res.Target, "kind", res.Kind, "terms", res.Terms, "batches", res.Batches)
	}

	slog.Info("session compiled",
		"session", s.ID,
		"targets", len(s.report.Targets),
		"failed", len(s.report.Failed()),
		"reparents", len(s.report.Reparents))
	return s.report, nil
}

func (s *Session) compileTarget(ctx context.Context, synth SumSynthesizer, h *ir.Hierarchy, t ir.TargetRef) (*Compilation, error) {
	e := s.collector.entries[t]
	base := targetBase(h, t)
	in := TargetInput{
		Target:          t,
		Base:            base,
		Terms:           e.Terms(),
		Splines:         e.Splines(),
		Adjusters:       e.Adjusters(),
		Remainder:       e.remainder,
		KeepRemainder:   e.keepRemainder,
		Rest:            e.keepRest,
		PreviousHelpers: e.helpers,
	}

	var restAtts []ir.Attachment
	if re, ok := s.rest.terms.entries[t]; ok && s.rest.Active(t) {
		restCh := RestChannel(base)
		rc, err := synth.Compile(TargetInput{
			Target:          ir.ChannelRef(restCh),
			Base:            string(restCh),
			Terms:           re.Terms(),
			Adjusters:       re.Adjusters(),
			Remainder:       re.remainder,
			KeepRemainder:   re.keepRemainder,
			PreviousHelpers: re.helpers,
		})
		if err != nil {
			return nil, err
		}
		restAtts = rc.Attachments
		in.Rest = true
	}

	if needsLocation(t, in.Terms, in.Splines) && s.opts.LocationAdjuster != "" {
		w, err := s.installLocation(ctx, h, t.Joint)
		if err != nil {
			return nil, err
		}
		in.Location = w
	}

	comp, err := synth.Compile(in)
	if err != nil {
		return nil, err
	}
	comp.Attachments = append(restAtts, comp.Attachments...)
	return comp, nil
}

// writeReparent applies a reparent computed on the hierarchy snapshot and
// records its pair. The stored parent must still match the snapshot.
func (s *Session) writeReparent(ctx context.Context, r Reparent) error {
	cur, err := s.store.JointParent(ctx, r.Joint)
	if err != nil {
		return fmt.Errorf("compile: reparent %s: %w", r.Name, err)
	}
	if cur != r.From {
		return fmt.Errorf("compile: reparent %s: stored parent %d does not match snapshot parent %d", r.Name, cur, r.From)
	}
	if err := s.store.ReparentJoint(ctx, r.Joint, r.To); err != nil {
		return fmt.Errorf("compile: reparent %s: %w", r.Name, err)
	}
	if err := s.store.MarkCycleBroken(ctx, r.Pair()); err != nil {
		return fmt.Errorf("compile: reparent %s: %w", r.Name, err)
	}
	return nil
}

// installLocation returns the location wrap of joint j, installing its
// adjuster channel the first time the session needs it.
func (s *Session) installLocation(ctx context.Context, h *ir.Hierarchy, j ir.JointID) (*Wrap, error) {
	name := LocationChannel(h.Name(j), s.opts)
	ch, err := s.store.InstallAdjuster(ctx, name, 1)
	if err != nil {
		return nil, fmt.Errorf("install location adjuster %q: %w", name, err)
	}
	if !s.installed[j] {
		s.installed[j] = true
		s.report.Adjusters = append(s.report.Adjusters, name)
		slog.Debug("location adjuster installed", "joint", h.Name(j), "channel", name)
	}
	return &Wrap{Name: locationVar, Source: ir.Prop(ch), Role: ir.RoleLocation}, nil
}

// LocationChannel names the location adjuster of a joint.
func LocationChannel(joint string, opts Options) string {
	return joint + "/" + opts.LocationAdjuster
}

// needsLocation reports whether a joint translation target reads another
// joint's translation.
func needsLocation(t ir.TargetRef, terms []ir.Term, splines []SplineContribution) bool {
	if t.Kind != ir.JointChannelTarget || t.Transform != ir.Translation {
		return false
	}
	for _, term := range terms {
		if !term.Neutralized && isJointTranslation(term.Source) {
			return true
		}
	}
	for _, sp := range splines {
		if isJointTranslation(sp.Source) {
			return true
		}
	}
	return false
}

func isJointTranslation(src ir.Source) bool {
	return src.Kind == ir.SourceJointAxis && src.Transform == ir.Translation
}

// targetBase is the readable helper-channel prefix of a target:
// the channel name, or "joint:?kind/axis".
func targetBase(h *ir.Hierarchy, t ir.TargetRef) string {
	if t.Kind == ir.ChannelTarget {
		return string(t.Channel)
	}
	return fmt.Sprintf("%s:?%s/%s", h.Name(t.Joint), t.Transform, t.Axis)
}

func (s *Session) result(h *ir.Hierarchy, c *Compilation) (TargetResult, error) {
	hash, err := ir.DriverHash(c.Driver)
	if err != nil {
		return TargetResult{}, err
	}
	res := TargetResult{
		Target:  targetBase(h, c.Target),
		Kind:    c.Driver.Kind(),
		Text:    c.Driver.Render(),
		Terms:   c.Terms,
		Batches: c.Batches,
		Hash:    hash,
	}
	for _, ch := range c.Helpers {
		res.Helpers = append(res.Helpers, string(ch))
	}
	return res, nil
}
