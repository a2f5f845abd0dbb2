package provision

import (
	"fmt"

	"github.com/optolab/oxc-southbound/types"
)

// PatchPair asks for one optical path: light out of Source into Destination.
// Either side may be the sentinel types.NoDevice, meaning that side is not
// patched; a pair with a sentinel on either side is skipped, not an error.
type PatchPair struct {
	Source      string
	Destination string
}

// real reports whether the pair names two actual devices.
func (p PatchPair) real() bool {
	return p.Source != types.NoDevice && p.Destination != types.NoDevice
}

// PatchRequest is a batch of patch pairs handled as one unit: all pairs pass
// validation, authorization and the power check before any of them is
// provisioned.
type PatchRequest struct {
	Pairs []PatchPair
}

// validate rejects empty or malformed requests before any backend is touched.
func (r PatchRequest) validate() error {
	if len(r.Pairs) == 0 {
		return &types.ValidationError{Reason: "no patch pairs in request"}
	}
	for i, p := range r.Pairs {
		if p.Source == "" || p.Destination == "" {
			return &types.ValidationError{Reason: fmt.Sprintf("pair %d has an empty device name", i)}
		}
	}
	return nil
}

// deviceSet returns the unique non-sentinel device names in the request.
func (r PatchRequest) deviceSet() []string {
	seen := make(map[string]struct{}, 2*len(r.Pairs))
	names := make([]string, 0, 2*len(r.Pairs))
	for _, p := range r.Pairs {
		for _, n := range []string{p.Source, p.Destination} {
			if n == types.NoDevice {
				continue
			}
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				names = append(names, n)
			}
		}
	}
	return names
}

// PatchResult reports one provisioned pair with its post-settle power
// readings. Readings that could not be taken are NaN; the connection itself
// is already in place by the time readback runs.
type PatchResult struct {
	Source      string
	Destination string

	// SourcePort is the switch ingress carrying light out of Source;
	// DestPort is the switch egress feeding Destination.
	SourcePort int
	DestPort   int

	SourcePowerDbm float64
	DestPowerDbm   float64
}

func (r PatchResult) String() string {
	return fmt.Sprintf("%s (%d): %.2f dBm ---> %s (%d): %.2f dBm",
		r.Source, r.SourcePort, r.SourcePowerDbm,
		r.Destination, r.DestPort, r.DestPowerDbm)
}

// PatchRow is one side of a patch in the human-readable patch table.
type PatchRow struct {
	Device   string
	Side     string // "source" or "destination"
	Port     int
	PowerDbm float64
}
