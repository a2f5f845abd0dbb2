package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/optolab/oxc-southbound/types"
)

// MemRegistry is an in-memory Directory/Ownership/OwnershipAdmin/Locker used
// in tests in place of the MySQL instance.
type MemRegistry struct {
	mu      sync.Mutex
	devices map[string]Device
	owners  map[string]string
	locks   map[string]*sync.Mutex

	// Err, when set, is returned by every query. Simulates a registry
	// outage.
	Err error
}

// NewMem creates an empty in-memory registry.
func NewMem() *MemRegistry {
	return &MemRegistry{
		devices: make(map[string]Device),
		owners:  make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
	}
}

// AddDevice registers a device. maxDbm nil means no configured ceiling.
func (m *MemRegistry) AddDevice(name string, inPort, outPort int, maxDbm *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[name] = Device{PolatisName: name, InPort: inPort, OutPort: outPort, MaxInputDbm: maxDbm}
}

// SetBooking sets the raw owner column for a device.
func (m *MemRegistry) SetBooking(name, ownerColumn string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[name] = ownerColumn
}

func (m *MemRegistry) device(name string) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Device{}, &types.BackendError{System: "registry", Op: "device lookup", Err: m.Err}
	}
	dev, ok := m.devices[name]
	if !ok {
		return Device{}, &types.NotFoundError{Kind: "device", Name: name}
	}
	return dev, nil
}

func (m *MemRegistry) IngressPort(ctx context.Context, name string) (int, error) {
	dev, err := m.device(name)
	if err != nil {
		return 0, err
	}
	return dev.OutPort, nil
}

func (m *MemRegistry) EgressPort(ctx context.Context, name string) (int, error) {
	dev, err := m.device(name)
	if err != nil {
		return 0, err
	}
	return dev.InPort, nil
}

func (m *MemRegistry) MaxInputPower(ctx context.Context, name string) (float64, bool, error) {
	dev, err := m.device(name)
	if err != nil {
		return 0, false, err
	}
	if dev.MaxInputDbm == nil {
		return 0, false, nil
	}
	return *dev.MaxInputDbm, true, nil
}

func (m *MemRegistry) Owners(ctx context.Context, name string) ([]string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, &types.BackendError{System: "registry", Op: "booking lookup", Err: m.Err}
	}
	owners := SplitOwners(m.owners[name])
	return owners, len(owners) > 0, nil
}

func (m *MemRegistry) SetOwner(ctx context.Context, names []string, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return &types.BackendError{System: "registry", Op: "booking update", Err: m.Err}
	}
	for _, name := range names {
		if name == types.NoDevice {
			continue
		}
		m.owners[name] = owner
	}
	return nil
}

// LockDevices takes per-device mutexes in sorted order, mirroring the
// acquisition discipline of the MySQL locker.
func (m *MemRegistry) LockDevices(ctx context.Context, names []string) (func() error, error) {
	unique := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != types.NoDevice {
			unique[n] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(unique))
	for n := range unique {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, name := range ordered {
		m.mu.Lock()
		mu, ok := m.locks[name]
		if !ok {
			mu = &sync.Mutex{}
			m.locks[name] = mu
		}
		m.mu.Unlock()
		mu.Lock()
		held = append(held, mu)
	}

	return func() error {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		return nil
	}, nil
}

var (
	_ Directory      = (*MemRegistry)(nil)
	_ Ownership      = (*MemRegistry)(nil)
	_ OwnershipAdmin = (*MemRegistry)(nil)
	_ Locker         = (*MemRegistry)(nil)
)
