package netconf

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/optolab/oxc-southbound/types"
)

// Optical-switch operations on top of the NETCONF session layer.

// GetPortPower returns the measured optical power (dBm) for one port.
func (d *Driver) GetPortPower(ctx context.Context, port int) (float64, error) {
	reply, err := d.Get(ctx, portPowerFilter(port))
	if err != nil {
		return 0, err
	}

	parsed, err := parseReply(reply)
	if err != nil {
		return 0, err
	}
	for _, p := range parsed.Data.OpmPower.Ports {
		id, convErr := strconv.Atoi(strings.TrimSpace(p.PortID))
		if convErr != nil || id != port {
			continue
		}
		pwr, convErr := strconv.ParseFloat(strings.TrimSpace(p.Power), 64)
		if convErr != nil {
			break
		}
		d.log.Debug("port power", zap.Int("port", port), zap.Float64("dbm", pwr))
		return pwr, nil
	}
	return 0, &types.NotFoundError{Kind: "power reading", Name: strconv.Itoa(port)}
}

// GetAllPower returns power readings for every port with an OPM entry.
func (d *Driver) GetAllPower(ctx context.Context) (map[int]float64, error) {
	reply, err := d.Get(ctx, allPowerFilter())
	if err != nil {
		return nil, err
	}
	return parsePowerMap(reply)
}

// GetPortStatus returns the operational status string for a port.
func (d *Driver) GetPortStatus(ctx context.Context, port int) (string, error) {
	reply, err := d.Get(ctx, portStatusFilter(port))
	if err != nil {
		return "", err
	}
	parsed, err := parseReply(reply)
	if err != nil {
		return "", err
	}
	for _, p := range parsed.Data.PortConfig.Ports {
		id, convErr := strconv.Atoi(strings.TrimSpace(p.PortID))
		if convErr == nil && id == port && p.Status != "" {
			return p.Status, nil
		}
	}
	return "", &types.NotFoundError{Kind: "port", Name: strconv.Itoa(port)}
}

// GetPortLabels returns the configured label per port.
func (d *Driver) GetPortLabels(ctx context.Context) (map[int]string, error) {
	reply, err := d.Get(ctx, portLabelsFilter())
	if err != nil {
		return nil, err
	}
	return parseLabelMap(reply)
}

// GetCrossConnects returns all cross-connect pairs on the switch.
func (d *Driver) GetCrossConnects(ctx context.Context) ([]types.CrossConnect, error) {
	reply, err := d.Get(ctx, crossConnectsFilter())
	if err != nil {
		return nil, err
	}
	return parseCrossConnects(reply)
}

// HasCrossConnect reports whether a pair with this ingress exists; when
// egress is non-nil only an exact match counts.
func (d *Driver) HasCrossConnect(ctx context.Context, ingress int, egress *int) (bool, error) {
	reply, err := d.Get(ctx, crossConnectFilter(ingress, egress))
	if err != nil {
		return false, err
	}
	pairs, err := parseCrossConnects(reply)
	if err != nil {
		return false, err
	}
	for _, p := range pairs {
		if p.Ingress != ingress {
			continue
		}
		if egress == nil || p.Egress == *egress {
			return true, nil
		}
	}
	return false, nil
}

// CreateCrossConnects applies all pairs in a single edit-config. The switch
// treats the batched pair list as one configuration change.
func (d *Driver) CreateCrossConnects(ctx context.Context, pairs []types.CrossConnect) error {
	if len(pairs) == 0 {
		d.log.Debug("CreateCrossConnects called with empty list; skipping")
		return nil
	}
	d.log.Info("creating cross-connects", zap.Int("count", len(pairs)))
	return d.EditConfig(ctx, crossConnectsConfig(pairs))
}

// DeleteCrossConnects removes the pairs keyed by the given ingress ports in
// a single edit-config.
func (d *Driver) DeleteCrossConnects(ctx context.Context, ingresses []int) error {
	if len(ingresses) == 0 {
		d.log.Debug("DeleteCrossConnects called with empty list; skipping")
		return nil
	}
	d.log.Info("deleting cross-connects", zap.Ints("ingress", ingresses))
	return d.EditConfig(ctx, deleteCrossConnectsConfig(ingresses))
}

// SetPortEnabled opens or closes the port shutter via the polatis-switch RPC.
func (d *Driver) SetPortEnabled(ctx context.Context, port int, enabled bool) error {
	_, err := d.Dispatch(ctx, shutterRPC(port, enabled))
	return err
}

// SetVOA configures the variable optical attenuator on a port.
func (d *Driver) SetVOA(ctx context.Context, port int, settings types.VOASettings) error {
	if !settings.Mode.Valid() {
		return fmt.Errorf("invalid VOA mode %q", settings.Mode)
	}
	if settings.Mode.RequiresLevel() && settings.AttenLevelDb == nil {
		return fmt.Errorf("atten level is required for mode %s", settings.Mode)
	}
	if settings.Mode != types.VOAModeRelative {
		settings.ReferencePort = nil
	}
	return d.EditConfig(ctx, voaConfig(port, settings))
}

// SetOPMConfig configures the power monitor (wavelength, offset) on a port.
func (d *Driver) SetOPMConfig(ctx context.Context, port int, settings types.OPMSettings) error {
	if settings.WavelengthNm == nil && settings.OffsetDb == nil {
		d.log.Debug("SetOPMConfig called with no changes; skipping", zap.Int("port", port))
		return nil
	}
	return d.EditConfig(ctx, opmConfig(port, settings))
}

// GetAllAttenuation returns VOA attenuation levels for every port that has
// one configured.
func (d *Driver) GetAllAttenuation(ctx context.Context) (map[int]float64, error) {
	reply, err := d.Get(ctx, attenuationFilter())
	if err != nil {
		return nil, err
	}
	return parseAttenMap(reply)
}
