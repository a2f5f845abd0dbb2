package types

import (
	"context"
	"time"
)

// Protocol represents the southbound protocol type
type Protocol string

const (
	ProtocolNETCONF Protocol = "netconf"
	ProtocolSNMP    Protocol = "snmp"
	ProtocolMock    Protocol = "mock" // For testing/simulation
)

// NoDevice is the sentinel device name meaning "no connection on this side".
// It must be skipped, never resolved, wherever a device name is expected.
const NoDevice = "NULL"

// DefaultMaxInputDbm is the safety ceiling applied when the directory has no
// configured limit for a device.
const DefaultMaxInputDbm = 20.0

// SwitchConfig contains connection parameters for an optical circuit switch
type SwitchConfig struct {
	// Name is a unique identifier for this switch
	Name string

	// Address is the management IP/hostname
	Address string

	// Port is the management port (if not default)
	Port int

	// Protocol is the management protocol
	Protocol Protocol

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// TLSSkipVerify skips host key verification (insecure, for lab use)
	TLSSkipVerify bool

	// Timeout for operations
	Timeout time.Duration

	// Metadata contains protocol-specific configuration
	// (e.g. snmp_community, snmp_version)
	Metadata map[string]string
}

// CrossConnect is a switch-level optical path joining one ingress port to one
// egress port. The switch keys cross-connects by ingress: at most one egress
// per ingress at any time.
type CrossConnect struct {
	Ingress int
	Egress  int
}

// VOAMode is the attenuation mode for a variable optical attenuator
type VOAMode string

const (
	VOAModeNone      VOAMode = "VOA_MODE_NONE"
	VOAModeRelative  VOAMode = "VOA_MODE_RELATIVE"
	VOAModeAbsolute  VOAMode = "VOA_MODE_ABSOLUTE"
	VOAModeConverged VOAMode = "VOA_MODE_CONVERGED"
	VOAModeMaximum   VOAMode = "VOA_MODE_MAXIMUM"
	VOAModeFixed     VOAMode = "VOA_MODE_FIXED"
)

// Valid reports whether m is one of the switch-recognized VOA modes.
func (m VOAMode) Valid() bool {
	switch m {
	case VOAModeNone, VOAModeRelative, VOAModeAbsolute,
		VOAModeConverged, VOAModeMaximum, VOAModeFixed:
		return true
	}
	return false
}

// RequiresLevel reports whether the mode needs an attenuation level.
func (m VOAMode) RequiresLevel() bool {
	switch m {
	case VOAModeAbsolute, VOAModeRelative, VOAModeConverged:
		return true
	}
	return false
}

// VOASettings configures the attenuator on one port
type VOASettings struct {
	Mode VOAMode

	// AttenLevelDb is required for absolute, relative and converged modes
	AttenLevelDb *float64

	// ReferencePort is only meaningful in relative mode
	ReferencePort *int
}

// OPMSettings configures the optical power monitor on one port
type OPMSettings struct {
	// WavelengthNm calibrates the monitor to a wavelength, in nm
	WavelengthNm *float64

	// OffsetDb applies a fixed reading offset, in dB
	OffsetDb *float64
}

// PortStatus values reported by the switch for a port
const (
	PortStatusEnabled  = "ENABLED"
	PortStatusDisabled = "DISABLED"
	PortStatusFailed   = "FAILED"
)

// PowerMonitor is the read-only subset of the switch contract: optical power
// and port state queries. Monitoring-only drivers (SNMP) implement just this.
type PowerMonitor interface {
	// GetPortPower returns measured optical power (dBm) for a single port
	GetPortPower(ctx context.Context, port int) (float64, error)

	// GetAllPower returns power readings for all ports with an OPM entry,
	// keyed by port id
	GetAllPower(ctx context.Context) (map[int]float64, error)

	// GetPortStatus returns the operational status string for a port
	GetPortStatus(ctx context.Context, port int) (string, error)
}

// Driver is the Switch Control Port: the abstract capability contract every
// switch driver must implement. Cross-connect edits are batched; a single
// call maps to a single configuration change on the switch, which is the
// basis for the all-or-nothing behavior the switch itself provides.
//
// Drivers that cannot support an operation return NotSupportedError rather
// than guessing or panicking.
type Driver interface {
	PowerMonitor

	// Connect establishes a session to the switch
	Connect(ctx context.Context, config *SwitchConfig) error

	// Disconnect closes the session
	Disconnect(ctx context.Context) error

	// IsConnected returns true if a session is established
	IsConnected() bool

	// GetCrossConnects returns all cross-connect pairs on the switch
	GetCrossConnects(ctx context.Context) ([]CrossConnect, error)

	// HasCrossConnect reports whether a pair with this ingress exists.
	// If egress is non-nil, only an exact (ingress, egress) match counts.
	HasCrossConnect(ctx context.Context, ingress int, egress *int) (bool, error)

	// CreateCrossConnects applies all pairs in one batched edit
	CreateCrossConnects(ctx context.Context, pairs []CrossConnect) error

	// DeleteCrossConnects removes the pairs keyed by the given ingress
	// ports in one batched edit
	DeleteCrossConnects(ctx context.Context, ingresses []int) error

	// GetPortLabels returns the configured label per port id
	GetPortLabels(ctx context.Context) (map[int]string, error)

	// SetPortEnabled opens or closes the port shutter
	SetPortEnabled(ctx context.Context, port int, enabled bool) error

	// SetVOA configures the variable optical attenuator on a port
	SetVOA(ctx context.Context, port int, settings VOASettings) error

	// SetOPMConfig configures the optical power monitor on a port
	SetOPMConfig(ctx context.Context, port int, settings OPMSettings) error

	// GetAllAttenuation returns VOA attenuation levels per port id
	GetAllAttenuation(ctx context.Context) (map[int]float64, error)

	// HealthCheck verifies the session is usable
	HealthCheck(ctx context.Context) error
}
