// Package southbound provides drivers for Polatis-class optical circuit
// switches: a NETCONF driver carrying the full configuration surface, an
// SNMP driver for monitoring-only access, and a mock driver for tests.
package southbound

import (
	"fmt"

	"github.com/optolab/oxc-southbound/drivers/mock"
	"github.com/optolab/oxc-southbound/drivers/netconf"
	"github.com/optolab/oxc-southbound/drivers/snmp"
)

// ProtocolCapabilities defines what each management protocol supports on
// this switch family.
type ProtocolCapabilities struct {
	// Config is true when the protocol can change switch configuration
	// (cross-connects, shutters, VOA, OPM calibration).
	Config bool

	// Monitoring is true when the protocol can read power and port state.
	Monitoring bool
}

// CapabilityMatrix defines what each protocol supports
var CapabilityMatrix = map[Protocol]ProtocolCapabilities{
	ProtocolNETCONF: {Config: true, Monitoring: true},
	ProtocolSNMP:    {Config: false, Monitoring: true},
	ProtocolMock:    {Config: true, Monitoring: true},
}

// NewDriver creates a switch driver for the given protocol. An empty
// protocol in the config defaults to NETCONF, the only protocol carrying the
// full configuration surface.
func NewDriver(config *SwitchConfig) (Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	protocol := config.Protocol
	if protocol == "" {
		protocol = ProtocolNETCONF
	}

	if _, ok := CapabilityMatrix[protocol]; !ok {
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}

	switch protocol {
	case ProtocolNETCONF:
		return netconf.NewDriver(config)
	case ProtocolSNMP:
		return snmp.NewDriver(config)
	case ProtocolMock:
		return mock.NewDriver(config)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", protocol)
	}
}

// GetSupportedProtocols returns all protocols with a driver.
func GetSupportedProtocols() []Protocol {
	protocols := make([]Protocol, 0, len(CapabilityMatrix))
	for p := range CapabilityMatrix {
		protocols = append(protocols, p)
	}
	return protocols
}

// GetProtocolCapabilities returns the capabilities of a protocol.
func GetProtocolCapabilities(protocol Protocol) (ProtocolCapabilities, bool) {
	caps, ok := CapabilityMatrix[protocol]
	return caps, ok
}
