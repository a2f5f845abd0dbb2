// Package provision implements the reservation and cross-connect
// provisioning core for the optical testbed: ownership verification against
// the registry, name-to-port resolution, the input power safety check and
// batched cross-connect setup/teardown on the switch.
package provision

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/optolab/oxc-southbound/registry"
	"github.com/optolab/oxc-southbound/types"
)

// settleDelay is how long light is given to stabilize after a cross-connect
// batch before power readback.
const settleDelay = time.Second

// Engine coordinates the registry and the switch driver for one testbed.
// All request state is request-scoped; the engine itself holds no mutable
// cache and is safe for concurrent use.
type Engine struct {
	sw     types.Driver
	dir    registry.Directory
	owners registry.Ownership
	locker registry.Locker
	admin  registry.OwnershipAdmin

	log          *zap.Logger
	defaultLimit float64
	settle       time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithLocker enables per-device advisory locking across the
// authorize/resolve/edit window.
func WithLocker(l registry.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithAdmin enables Release by providing an elevated registry handle.
func WithAdmin(a registry.OwnershipAdmin) Option {
	return func(e *Engine) { e.admin = a }
}

// WithSettleDelay overrides the post-edit settle delay. Tests set zero.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settle = d }
}

// WithDefaultPowerLimit overrides the ceiling applied to devices without a
// configured limit.
func WithDefaultPowerLimit(dbm float64) Option {
	return func(e *Engine) { e.defaultLimit = dbm }
}

// NewEngine wires an engine to a switch driver and a registry.
func NewEngine(sw types.Driver, dir registry.Directory, owners registry.Ownership, opts ...Option) *Engine {
	e := &Engine{
		sw:           sw,
		dir:          dir,
		owners:       owners,
		log:          zap.NewNop(),
		defaultLimit: types.DefaultMaxInputDbm,
		settle:       settleDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize checks that user may operate every named device. The sentinel is
// skipped. A device with no booking is free for anyone; a device missing
// from the directory fails authorization, since it can never be patched.
// Registry faults propagate as BackendError, never as an authorized result.
func (e *Engine) Authorize(ctx context.Context, names []string, user string) (bool, error) {
	authErr := &types.AuthorizationError{User: user}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == types.NoDevice {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, err := e.dir.IngressPort(ctx, name); err != nil {
			if types.IsNotFound(err) {
				authErr.Missing = append(authErr.Missing, name)
				continue
			}
			return false, err
		}

		owners, booked, err := e.owners.Owners(ctx, name)
		if err != nil {
			return false, err
		}
		if !booked {
			continue
		}
		allowed := false
		for _, o := range owners {
			if o == user {
				allowed = true
				break
			}
		}
		if !allowed {
			authErr.Conflicts = append(authErr.Conflicts,
				types.OwnershipConflict{Device: name, Owners: owners})
		}
	}

	if len(authErr.Missing) > 0 || len(authErr.Conflicts) > 0 {
		return false, authErr
	}
	return true, nil
}

// resolved is a patch pair after directory resolution.
type resolved struct {
	pair    PatchPair
	ingress int // switch port carrying light out of pair.Source
	egress  int // switch port feeding pair.Destination
}

// resolve maps every real pair to switch ports. Sentinel pairs drop out here.
func (e *Engine) resolve(ctx context.Context, req PatchRequest) ([]resolved, error) {
	out := make([]resolved, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		if !p.real() {
			continue
		}
		ing, err := e.dir.IngressPort(ctx, p.Source)
		if err != nil {
			return nil, err
		}
		eg, err := e.dir.EgressPort(ctx, p.Destination)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved{pair: p, ingress: ing, egress: eg})
	}
	return out, nil
}

// checkPower enforces the input ceiling for one pair: the power measured on
// the source ingress must not strictly exceed the destination's limit.
// A missing reading means no measurable light on the path, which is safe.
func (e *Engine) checkPower(ctx context.Context, r resolved) error {
	limit, ok, err := e.dir.MaxInputPower(ctx, r.pair.Destination)
	if err != nil {
		return err
	}
	if !ok {
		limit = e.defaultLimit
	}

	measured, err := e.sw.GetPortPower(ctx, r.ingress)
	if err != nil {
		if types.IsNotFound(err) {
			return nil
		}
		return &types.BackendError{System: "switch", Op: "power check", Err: err}
	}
	if measured > limit {
		return &types.SafetyLimitError{
			Source:      r.pair.Source,
			Destination: r.pair.Destination,
			SourcePort:  r.ingress,
			MeasuredDbm: measured,
			LimitDbm:    limit,
		}
	}
	return nil
}

// lock takes the advisory locks for the request's device set, if a locker is
// configured. The returned release is never nil.
func (e *Engine) lock(ctx context.Context, names []string) (func() error, error) {
	if e.locker == nil {
		return func() error { return nil }, nil
	}
	return e.locker.LockDevices(ctx, names)
}

// Apply provisions every pair in the request as one batch: validate, lock,
// authorize, resolve, power-check each pair, then a single batched
// cross-connect edit. Any failure before the edit leaves the switch
// untouched. After the edit, power is read back per pair; readback failures
// yield NaN readings, not an error.
func (e *Engine) Apply(ctx context.Context, req PatchRequest, user string) ([]PatchResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	names := req.deviceSet()
	release, err := e.lock(ctx, names)
	if err != nil {
		return nil, err
	}
	defer release() //nolint:errcheck

	if _, err := e.Authorize(ctx, names, user); err != nil {
		return nil, err
	}

	pairs, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		e.log.Info("apply: all pairs sentinel, nothing to provision", zap.String("user", user))
		return nil, nil
	}

	for _, r := range pairs {
		if err := e.checkPower(ctx, r); err != nil {
			return nil, err
		}
	}

	batch := make([]types.CrossConnect, len(pairs))
	for i, r := range pairs {
		batch[i] = types.CrossConnect{Ingress: r.ingress, Egress: r.egress}
	}
	e.log.Info("applying patch batch",
		zap.String("user", user), zap.Int("pairs", len(batch)))
	if err := e.sw.CreateCrossConnects(ctx, batch); err != nil {
		return nil, &types.BackendError{System: "switch", Op: "create cross-connects", Err: err}
	}

	// The edit is acknowledged; from here the request is not cancellable.
	// A context expiring during the settle wait must still report the
	// applied batch, with readback degrading to NaN where reads fail.
	if e.settle > 0 {
		select {
		case <-time.After(e.settle):
		case <-ctx.Done():
			e.log.Warn("context expired during settle; reporting applied batch",
				zap.Error(ctx.Err()))
		}
	}

	results := make([]PatchResult, len(pairs))
	for i, r := range pairs {
		results[i] = PatchResult{
			Source:         r.pair.Source,
			Destination:    r.pair.Destination,
			SourcePort:     r.ingress,
			DestPort:       r.egress,
			SourcePowerDbm: e.readbackPower(ctx, r.ingress),
			DestPowerDbm:   e.readbackPower(ctx, r.egress),
		}
		e.log.Info("patched", zap.String("result", results[i].String()))
	}
	return results, nil
}

// readbackPower is the best-effort post-settle reading. The connection is
// already made; a failed reading must not fail the request.
func (e *Engine) readbackPower(ctx context.Context, port int) float64 {
	pwr, err := e.sw.GetPortPower(ctx, port)
	if err != nil {
		e.log.Warn("power readback failed", zap.Int("port", port), zap.Error(err))
		return math.NaN()
	}
	return pwr
}

// Teardown removes the cross-connects for every pair in the request, keyed
// by each pair's resolved ingress, as one batched edit. It is idempotent:
// ingresses with no live cross-connect are skipped, and when nothing remains
// to delete no edit is issued at all.
func (e *Engine) Teardown(ctx context.Context, req PatchRequest, user string) error {
	if err := req.validate(); err != nil {
		return err
	}

	names := req.deviceSet()
	release, err := e.lock(ctx, names)
	if err != nil {
		return err
	}
	defer release() //nolint:errcheck

	if _, err := e.Authorize(ctx, names, user); err != nil {
		return err
	}

	pairs, err := e.resolve(ctx, req)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}

	live, err := e.sw.GetCrossConnects(ctx)
	if err != nil {
		return &types.BackendError{System: "switch", Op: "list cross-connects", Err: err}
	}
	present := make(map[int]struct{}, len(live))
	for _, cc := range live {
		present[cc.Ingress] = struct{}{}
	}

	ingresses := make([]int, 0, len(pairs))
	for _, r := range pairs {
		if _, ok := present[r.ingress]; ok {
			ingresses = append(ingresses, r.ingress)
		}
	}
	if len(ingresses) == 0 {
		e.log.Info("teardown: no live cross-connects to remove", zap.String("user", user))
		return nil
	}

	e.log.Info("tearing down patch batch",
		zap.String("user", user), zap.Ints("ingress", ingresses))
	if err := e.sw.DeleteCrossConnects(ctx, ingresses); err != nil {
		return &types.BackendError{System: "switch", Op: "delete cross-connects", Err: err}
	}
	return nil
}

// Release rewrites the owner of each named device. Administrative: it
// bypasses the verifier and requires an engine built with WithAdmin. The
// sentinel is skipped.
func (e *Engine) Release(ctx context.Context, names []string, newOwner string) error {
	if e.admin == nil {
		return fmt.Errorf("release requires an administrative registry handle")
	}
	if len(names) == 0 {
		return &types.ValidationError{Reason: "no devices to release"}
	}
	e.log.Info("releasing devices", zap.Strings("devices", names), zap.String("owner", newOwner))
	return e.admin.SetOwner(ctx, names, newOwner)
}

// ReadPower returns the measured power on one switch port.
func (e *Engine) ReadPower(ctx context.Context, port int) (float64, error) {
	pwr, err := e.sw.GetPortPower(ctx, port)
	if err != nil {
		if types.IsNotFound(err) {
			return 0, err
		}
		return 0, &types.BackendError{System: "switch", Op: "read power", Err: err}
	}
	return pwr, nil
}

// ListCrossConnects returns the live cross-connect table.
func (e *Engine) ListCrossConnects(ctx context.Context) ([]types.CrossConnect, error) {
	pairs, err := e.sw.GetCrossConnects(ctx)
	if err != nil {
		return nil, &types.BackendError{System: "switch", Op: "list cross-connects", Err: err}
	}
	return pairs, nil
}

// PatchTable resolves a request and reads current power on every real side,
// without touching switch configuration. Used for human-readable reporting.
func (e *Engine) PatchTable(ctx context.Context, req PatchRequest) ([]PatchRow, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	rows := make([]PatchRow, 0, 2*len(req.Pairs))
	for _, p := range req.Pairs {
		if p.Source != types.NoDevice {
			ing, err := e.dir.IngressPort(ctx, p.Source)
			if err != nil {
				return nil, err
			}
			rows = append(rows, PatchRow{
				Device: p.Source, Side: "source", Port: ing,
				PowerDbm: e.readbackPower(ctx, ing),
			})
		}
		if p.Destination != types.NoDevice {
			eg, err := e.dir.EgressPort(ctx, p.Destination)
			if err != nil {
				return nil, err
			}
			rows = append(rows, PatchRow{
				Device: p.Destination, Side: "destination", Port: eg,
				PowerDbm: e.readbackPower(ctx, eg),
			})
		}
	}
	return rows, nil
}
