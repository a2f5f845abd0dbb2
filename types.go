package southbound

import (
	"github.com/optolab/oxc-southbound/types"
)

// Re-export the shared contracts so callers can depend on the root package
// alone.

type (
	Protocol     = types.Protocol
	SwitchConfig = types.SwitchConfig
	CrossConnect = types.CrossConnect
	VOAMode      = types.VOAMode
	VOASettings  = types.VOASettings
	OPMSettings  = types.OPMSettings
	Driver       = types.Driver
	PowerMonitor = types.PowerMonitor
)

const (
	ProtocolNETCONF = types.ProtocolNETCONF
	ProtocolSNMP    = types.ProtocolSNMP
	ProtocolMock    = types.ProtocolMock

	NoDevice           = types.NoDevice
	DefaultMaxInputDbm = types.DefaultMaxInputDbm
)
