// Package registry provides the shared-resource directory for the testbed:
// the mapping from device names to optical-switch ports, the booking table
// that records who holds each device, and named advisory locks used to close
// the check-then-act window during provisioning.
//
// The production backend is the lab MySQL instance, accessed through GORM.
// An in-memory implementation backs the tests.
package registry

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/optolab/oxc-southbound/types"
)

// Directory resolves device names to switch ports. The direction convention
// is deliberately swapped: a device's switch-side ingress is the device's
// configured output port (light leaves the device and enters the switch), and
// its switch-side egress is the device's input port.
type Directory interface {
	// IngressPort returns the switch port receiving light from the device
	// (the device's out_port column).
	IngressPort(ctx context.Context, name string) (int, error)

	// EgressPort returns the switch port sending light into the device
	// (the device's in_port column).
	EgressPort(ctx context.Context, name string) (int, error)

	// MaxInputPower returns the device's configured input ceiling in dBm.
	// ok is false when the directory has no limit for the device.
	MaxInputPower(ctx context.Context, name string) (limit float64, ok bool, err error)
}

// Ownership reads the booking table.
type Ownership interface {
	// Owners returns the users holding a device. booked is false when the
	// device has no booking row or an empty owner list; such a device is
	// free for anyone to operate.
	Owners(ctx context.Context, name string) (owners []string, booked bool, err error)
}

// OwnershipAdmin mutates the booking table. Implementations require elevated
// database credentials; the verifier never goes through this interface.
type OwnershipAdmin interface {
	// SetOwner rewrites the owner list of each named device.
	SetOwner(ctx context.Context, names []string, owner string) error
}

// Locker provides named advisory locks over device sets. Locks are always
// acquired in canonical sorted order so overlapping requests cannot deadlock.
type Locker interface {
	// LockDevices acquires one lock per unique name and returns a release
	// function. On error nothing stays held.
	LockDevices(ctx context.Context, names []string) (release func() error, err error)
}

// Registry is the MySQL-backed implementation of Directory, Ownership and
// OwnershipAdmin.
type Registry struct {
	db *gorm.DB
}

// New wraps an open GORM handle.
func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) device(ctx context.Context, name string) (*Device, error) {
	var dev Device
	err := r.db.WithContext(ctx).Where("polatis_name = ?", name).First(&dev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "device", Name: name}
	}
	if err != nil {
		return nil, &types.BackendError{System: "registry", Op: "device lookup", Err: err}
	}
	return &dev, nil
}

// IngressPort implements Directory.
func (r *Registry) IngressPort(ctx context.Context, name string) (int, error) {
	dev, err := r.device(ctx, name)
	if err != nil {
		return 0, err
	}
	return dev.OutPort, nil
}

// EgressPort implements Directory.
func (r *Registry) EgressPort(ctx context.Context, name string) (int, error) {
	dev, err := r.device(ctx, name)
	if err != nil {
		return 0, err
	}
	return dev.InPort, nil
}

// MaxInputPower implements Directory.
func (r *Registry) MaxInputPower(ctx context.Context, name string) (float64, bool, error) {
	dev, err := r.device(ctx, name)
	if err != nil {
		return 0, false, err
	}
	if dev.MaxInputDbm == nil {
		return 0, false, nil
	}
	return *dev.MaxInputDbm, true, nil
}

// Owners implements Ownership.
func (r *Registry) Owners(ctx context.Context, name string) ([]string, bool, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &types.BackendError{System: "registry", Op: "booking lookup", Err: err}
	}
	owners := SplitOwners(booking.Owner)
	return owners, len(owners) > 0, nil
}

// SetOwner implements OwnershipAdmin. Devices without a booking row get one.
// A single upsert per device keeps the operation idempotent: rewriting an
// owner list to its current value is a no-op, not a duplicate-key failure.
func (r *Registry) SetOwner(ctx context.Context, names []string, owner string) error {
	for _, name := range names {
		if name == types.NoDevice {
			continue
		}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"owner": owner}),
		}).Create(&Booking{Name: name, Owner: owner}).Error
		if err != nil {
			return &types.BackendError{System: "registry", Op: "booking upsert", Err: err}
		}
	}
	return nil
}

// SplitOwners parses a comma-separated owner column into user names,
// dropping empties and surrounding whitespace.
func SplitOwners(column string) []string {
	if strings.TrimSpace(column) == "" {
		return nil
	}
	parts := strings.Split(column, ",")
	owners := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			owners = append(owners, p)
		}
	}
	return owners
}

// JoinOwners is the inverse of SplitOwners.
func JoinOwners(owners []string) string {
	return strings.Join(owners, ",")
}

var (
	_ Directory      = (*Registry)(nil)
	_ Ownership      = (*Registry)(nil)
	_ OwnershipAdmin = (*Registry)(nil)
)
