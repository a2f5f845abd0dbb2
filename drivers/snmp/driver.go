package snmp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/optolab/oxc-southbound/types"
)

// Polatis enterprise MIB, OPM and port tables. Readings are reported in
// hundredths of a dBm.
const (
	oidSysDescr = "1.3.6.1.2.1.1.1.0"

	oidOpmPowerTable  = "1.3.6.1.4.1.26592.2.3.2.2.2.1.2" // opmPower.<port>
	oidPortStateTable = "1.3.6.1.4.1.26592.2.2.2.1.2.1.2" // portState.<port>
)

// Port state values in the Polatis MIB
const (
	portStateEnabled  = 1
	portStateDisabled = 2
	portStateFailed   = 3
)

// Driver implements the types.Driver interface using SNMP.
// SNMP on the switch is monitoring-only: power and port state queries work,
// everything that would mutate switch configuration returns
// types.NotSupportedError and must go through the NETCONF driver.
type Driver struct {
	config *types.SwitchConfig
	snmp   *gosnmp.GoSNMP
}

// NewDriver creates a new SNMP monitoring driver
func NewDriver(config *types.SwitchConfig) (*Driver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	// Default SNMP port
	if config.Port == 0 {
		config.Port = 161
	}

	// Default timeout
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Driver{
		config: config,
	}, nil
}

// Connect establishes an SNMP connection
func (d *Driver) Connect(ctx context.Context, config *types.SwitchConfig) error {
	if config != nil {
		d.config = config
	}

	// SNMP version from metadata (default v2c)
	version := gosnmp.Version2c
	if v, ok := d.config.Metadata["snmp_version"]; ok {
		switch v {
		case "1":
			version = gosnmp.Version1
		case "2c":
			version = gosnmp.Version2c
		case "3":
			version = gosnmp.Version3
		}
	}

	// Community string (default: public)
	community := "public"
	if c, ok := d.config.Metadata["snmp_community"]; ok {
		community = c
	}

	port := d.config.Port
	if port < 0 || port > 65535 {
		port = 161
	}
	snmpClient := &gosnmp.GoSNMP{
		Target:    d.config.Address,
		Port:      uint16(port), //nolint:gosec // validated above
		Community: community,
		Version:   version,
		Timeout:   d.config.Timeout,
		Retries:   3,
	}

	if version == gosnmp.Version3 {
		snmpClient.SecurityModel = gosnmp.UserSecurityModel
		snmpClient.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 d.config.Username,
			AuthenticationProtocol:   gosnmp.SHA,
			AuthenticationPassphrase: d.config.Password,
			PrivacyProtocol:          gosnmp.AES,
			PrivacyPassphrase:        d.config.Password,
		}
		snmpClient.MsgFlags = gosnmp.AuthPriv
	}

	if err := snmpClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect SNMP: %w", err)
	}

	d.snmp = snmpClient
	return nil
}

// Disconnect closes the SNMP connection
func (d *Driver) Disconnect(ctx context.Context) error {
	if d.snmp != nil {
		err := d.snmp.Conn.Close()
		d.snmp = nil
		return err
	}
	return nil
}

// IsConnected returns true if connected
func (d *Driver) IsConnected() bool {
	return d.snmp != nil
}

// GetPortPower reads one OPM table entry
func (d *Driver) GetPortPower(ctx context.Context, port int) (float64, error) {
	if !d.IsConnected() {
		return 0, fmt.Errorf("not connected to switch")
	}

	oid := fmt.Sprintf("%s.%d", oidOpmPowerTable, port)
	result, err := d.snmp.Get([]string{oid})
	if err != nil {
		return 0, fmt.Errorf("SNMP GET failed: %w", err)
	}
	if len(result.Variables) == 0 || result.Variables[0].Type == gosnmp.NoSuchInstance {
		return 0, &types.NotFoundError{Kind: "power reading", Name: strconv.Itoa(port)}
	}
	return pduToDbm(result.Variables[0])
}

// GetAllPower walks the OPM table
func (d *Driver) GetAllPower(ctx context.Context) (map[int]float64, error) {
	if !d.IsConnected() {
		return nil, fmt.Errorf("not connected to switch")
	}

	results := make(map[int]float64)
	err := d.snmp.Walk(oidOpmPowerTable, func(pdu gosnmp.SnmpPDU) error {
		// Index is the port id, the last sub-identifier
		port, convErr := strconv.Atoi(pdu.Name[len(pdu.Name)-lastIndexLen(pdu.Name):])
		if convErr != nil {
			return nil
		}
		dbm, convErr := pduToDbm(pdu)
		if convErr != nil {
			return nil
		}
		results[port] = dbm
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SNMP WALK failed: %w", err)
	}
	return results, nil
}

// GetPortStatus reads the port state table entry
func (d *Driver) GetPortStatus(ctx context.Context, port int) (string, error) {
	if !d.IsConnected() {
		return "", fmt.Errorf("not connected to switch")
	}

	oid := fmt.Sprintf("%s.%d", oidPortStateTable, port)
	result, err := d.snmp.Get([]string{oid})
	if err != nil {
		return "", fmt.Errorf("SNMP GET failed: %w", err)
	}
	if len(result.Variables) == 0 || result.Variables[0].Type == gosnmp.NoSuchInstance {
		return "", &types.NotFoundError{Kind: "port", Name: strconv.Itoa(port)}
	}

	state, ok := result.Variables[0].Value.(int)
	if !ok {
		return "", fmt.Errorf("unexpected port state type for port %d", port)
	}
	switch state {
	case portStateEnabled:
		return types.PortStatusEnabled, nil
	case portStateDisabled:
		return types.PortStatusDisabled, nil
	case portStateFailed:
		return types.PortStatusFailed, nil
	default:
		return fmt.Sprintf("UNKNOWN(%d)", state), nil
	}
}

// HealthCheck queries sysDescr
func (d *Driver) HealthCheck(ctx context.Context) error {
	if !d.IsConnected() {
		return fmt.Errorf("not connected to switch")
	}
	_, err := d.snmp.Get([]string{oidSysDescr})
	return err
}

// Configuration surface: not available over SNMP on this switch family.

func (d *Driver) GetCrossConnects(ctx context.Context) ([]types.CrossConnect, error) {
	return nil, &types.NotSupportedError{Driver: "snmp", Op: "GetCrossConnects"}
}

func (d *Driver) HasCrossConnect(ctx context.Context, ingress int, egress *int) (bool, error) {
	return false, &types.NotSupportedError{Driver: "snmp", Op: "HasCrossConnect"}
}

func (d *Driver) CreateCrossConnects(ctx context.Context, pairs []types.CrossConnect) error {
	return &types.NotSupportedError{Driver: "snmp", Op: "CreateCrossConnects"}
}

func (d *Driver) DeleteCrossConnects(ctx context.Context, ingresses []int) error {
	return &types.NotSupportedError{Driver: "snmp", Op: "DeleteCrossConnects"}
}

func (d *Driver) GetPortLabels(ctx context.Context) (map[int]string, error) {
	return nil, &types.NotSupportedError{Driver: "snmp", Op: "GetPortLabels"}
}

func (d *Driver) SetPortEnabled(ctx context.Context, port int, enabled bool) error {
	return &types.NotSupportedError{Driver: "snmp", Op: "SetPortEnabled"}
}

func (d *Driver) SetVOA(ctx context.Context, port int, settings types.VOASettings) error {
	return &types.NotSupportedError{Driver: "snmp", Op: "SetVOA"}
}

func (d *Driver) SetOPMConfig(ctx context.Context, port int, settings types.OPMSettings) error {
	return &types.NotSupportedError{Driver: "snmp", Op: "SetOPMConfig"}
}

func (d *Driver) GetAllAttenuation(ctx context.Context) (map[int]float64, error) {
	return nil, &types.NotSupportedError{Driver: "snmp", Op: "GetAllAttenuation"}
}

// pduToDbm converts a hundredths-of-dBm PDU value to dBm
func pduToDbm(pdu gosnmp.SnmpPDU) (float64, error) {
	switch pdu.Type {
	case gosnmp.Integer:
		v, ok := pdu.Value.(int)
		if !ok {
			return 0, fmt.Errorf("unexpected integer payload %T", pdu.Value)
		}
		return float64(v) / 100, nil
	case gosnmp.OctetString:
		raw, ok := pdu.Value.([]byte)
		if !ok {
			return 0, fmt.Errorf("unexpected string payload %T", pdu.Value)
		}
		dbm, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable power reading %q", raw)
		}
		return dbm, nil
	default:
		return 0, fmt.Errorf("unexpected power reading type %v", pdu.Type)
	}
}

// lastIndexLen returns the length of the final sub-identifier in an OID
func lastIndexLen(oid string) int {
	for i := len(oid) - 1; i >= 0; i-- {
		if oid[i] == '.' {
			return len(oid) - i - 1
		}
	}
	return len(oid)
}

var _ types.Driver = (*Driver)(nil)
