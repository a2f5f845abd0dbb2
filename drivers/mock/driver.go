package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/optolab/oxc-southbound/types"
)

// Driver implements a mock switch driver for testing. It simulates a
// Polatis-class optical circuit switch without connecting to real equipment:
// per-port power readings, a cross-connect table keyed by ingress, shutters,
// VOA levels and an operation history for assertions.
type Driver struct {
	config    *types.SwitchConfig
	connected bool
	mu        sync.RWMutex

	powers   map[int]float64
	conns    map[int]int // ingress -> egress
	labels   map[int]string
	statuses map[int]string
	atten    map[int]float64
	history  []string

	// EditErr, when set, is returned by the next batched edit. Lets tests
	// simulate a switch-side fault after all policy checks passed.
	EditErr error
}

// NewDriver creates a new mock switch driver
func NewDriver(config *types.SwitchConfig) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	return &Driver{
		config:   config,
		powers:   make(map[int]float64),
		conns:    make(map[int]int),
		labels:   make(map[int]string),
		statuses: make(map[int]string),
		atten:    make(map[int]float64),
		history:  make([]string, 0),
	}, nil
}

// SetPortPower seeds a simulated OPM reading for a port.
func (d *Driver) SetPortPower(port int, dbm float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.powers[port] = dbm
}

// SetPortLabel seeds a port label.
func (d *Driver) SetPortLabel(port int, label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.labels[port] = label
}

// History returns a copy of the recorded operations.
func (d *Driver) History() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.history))
	copy(out, d.history)
	return out
}

// EditCount returns how many batched edit operations were issued.
func (d *Driver) EditCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, h := range d.history {
		if h == "create-cross-connects" || h == "delete-cross-connects" {
			n++
		}
	}
	return n
}

func (d *Driver) record(op string) {
	d.history = append(d.history, op)
}

// Connect simulates establishing a session
func (d *Driver) Connect(ctx context.Context, config *types.SwitchConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if config != nil {
		d.config = config
	}

	select {
	case <-time.After(10 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	d.connected = true
	d.record("connect")
	return nil
}

// Disconnect closes the simulated session
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = false
	d.record("disconnect")
	return nil
}

// IsConnected returns connection status
func (d *Driver) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// GetPortPower returns the simulated reading for a port
func (d *Driver) GetPortPower(ctx context.Context, port int) (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return 0, fmt.Errorf("not connected to switch")
	}
	pwr, ok := d.powers[port]
	if !ok {
		return 0, &types.NotFoundError{Kind: "power reading", Name: fmt.Sprintf("%d", port)}
	}
	return pwr, nil
}

// GetAllPower returns all simulated readings
func (d *Driver) GetAllPower(ctx context.Context) (map[int]float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return nil, fmt.Errorf("not connected to switch")
	}
	out := make(map[int]float64, len(d.powers))
	for p, v := range d.powers {
		out[p] = v
	}
	return out, nil
}

// GetPortStatus returns the simulated shutter status (default ENABLED)
func (d *Driver) GetPortStatus(ctx context.Context, port int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return "", fmt.Errorf("not connected to switch")
	}
	if s, ok := d.statuses[port]; ok {
		return s, nil
	}
	return types.PortStatusEnabled, nil
}

// GetPortLabels returns the seeded labels
func (d *Driver) GetPortLabels(ctx context.Context) (map[int]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return nil, fmt.Errorf("not connected to switch")
	}
	out := make(map[int]string, len(d.labels))
	for p, l := range d.labels {
		out[p] = l
	}
	return out, nil
}

// GetCrossConnects returns the current table sorted by ingress
func (d *Driver) GetCrossConnects(ctx context.Context) ([]types.CrossConnect, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return nil, fmt.Errorf("not connected to switch")
	}
	pairs := make([]types.CrossConnect, 0, len(d.conns))
	for ing, eg := range d.conns {
		pairs = append(pairs, types.CrossConnect{Ingress: ing, Egress: eg})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Ingress < pairs[j].Ingress })
	return pairs, nil
}

// HasCrossConnect checks the simulated table
func (d *Driver) HasCrossConnect(ctx context.Context, ingress int, egress *int) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return false, fmt.Errorf("not connected to switch")
	}
	eg, ok := d.conns[ingress]
	if !ok {
		return false, nil
	}
	if egress != nil && eg != *egress {
		return false, nil
	}
	return true, nil
}

// CreateCrossConnects applies all pairs as one batch. A seeded reading on
// the ingress port propagates to the egress port, the way light would after
// the path settles.
func (d *Driver) CreateCrossConnects(ctx context.Context, pairs []types.CrossConnect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected to switch")
	}
	if len(pairs) == 0 {
		return nil
	}
	if d.EditErr != nil {
		err := d.EditErr
		d.EditErr = nil
		return err
	}

	for _, p := range pairs {
		d.conns[p.Ingress] = p.Egress
		if pwr, ok := d.powers[p.Ingress]; ok {
			d.powers[p.Egress] = pwr
		}
	}
	d.record("create-cross-connects")
	return nil
}

// DeleteCrossConnects removes entries keyed by ingress as one batch. Absent
// ingresses are ignored, matching rollback-on-error delete semantics only
// when the caller filtered beforehand; tests use this to verify the engine
// does that filtering.
func (d *Driver) DeleteCrossConnects(ctx context.Context, ingresses []int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected to switch")
	}
	if len(ingresses) == 0 {
		return nil
	}
	if d.EditErr != nil {
		err := d.EditErr
		d.EditErr = nil
		return err
	}

	for _, ing := range ingresses {
		delete(d.conns, ing)
	}
	d.record("delete-cross-connects")
	return nil
}

// SetPortEnabled flips the simulated shutter
func (d *Driver) SetPortEnabled(ctx context.Context, port int, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected to switch")
	}
	if enabled {
		d.statuses[port] = types.PortStatusEnabled
	} else {
		d.statuses[port] = types.PortStatusDisabled
	}
	d.record(fmt.Sprintf("shutter %d enabled=%v", port, enabled))
	return nil
}

// SetVOA records the simulated attenuation
func (d *Driver) SetVOA(ctx context.Context, port int, settings types.VOASettings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected to switch")
	}
	if !settings.Mode.Valid() {
		return fmt.Errorf("invalid VOA mode %q", settings.Mode)
	}
	if settings.Mode.RequiresLevel() {
		if settings.AttenLevelDb == nil {
			return fmt.Errorf("atten level is required for mode %s", settings.Mode)
		}
		d.atten[port] = *settings.AttenLevelDb
	}
	d.record(fmt.Sprintf("voa %d mode=%s", port, settings.Mode))
	return nil
}

// SetOPMConfig records an OPM calibration change
func (d *Driver) SetOPMConfig(ctx context.Context, port int, settings types.OPMSettings) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("not connected to switch")
	}
	d.record(fmt.Sprintf("opm-config %d", port))
	return nil
}

// GetAllAttenuation returns the simulated VOA levels
func (d *Driver) GetAllAttenuation(ctx context.Context) (map[int]float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return nil, fmt.Errorf("not connected to switch")
	}
	out := make(map[int]float64, len(d.atten))
	for p, v := range d.atten {
		out[p] = v
	}
	return out, nil
}

// HealthCheck succeeds while connected
func (d *Driver) HealthCheck(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("not connected to switch")
	}
	return nil
}

var _ types.Driver = (*Driver)(nil)
