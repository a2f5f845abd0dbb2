package netconf

// Polatis optical-switch YANG namespaces and subtree templates.
// Reference: Polatis YANG models shipped with the H+S series switches:
//   /opm-power       per-port optical power readings
//   /opm-config      power monitor calibration (wavelength, offset)
//   /cross-connects  ingress->egress pair list, keyed by ingress
//   /voa             variable optical attenuators
//   /port-config     labels, shutter status
// Shutter state changes go through the polatis-switch RPC namespace.

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/optolab/oxc-southbound/types"
)

// YANG namespaces
const (
	NSOpticalSwitch = "http://www.polatis.com/yang/optical-switch"
	NSPolatisSwitch = "http://www.polatis.com/yang/polatis-switch"
	NSNetconfBase   = "urn:ietf:params:xml:ns:netconf:base:1.0"
)

// Subtree filters

func portPowerFilter(port int) string {
	return fmt.Sprintf(`<opm-power xmlns=%q><port><port-id>%d</port-id><power/></port></opm-power>`,
		NSOpticalSwitch, port)
}

func allPowerFilter() string {
	return fmt.Sprintf(`<opm-power xmlns=%q><port><port-id/><power/></port></opm-power>`,
		NSOpticalSwitch)
}

func crossConnectsFilter() string {
	return fmt.Sprintf(`<cross-connects xmlns=%q><pair><ingress/><egress/></pair></cross-connects>`,
		NSOpticalSwitch)
}

func crossConnectFilter(ingress int, egress *int) string {
	eg := "<egress/>"
	if egress != nil {
		eg = fmt.Sprintf("<egress>%d</egress>", *egress)
	}
	return fmt.Sprintf(`<cross-connects xmlns=%q><pair><ingress>%d</ingress>%s</pair></cross-connects>`,
		NSOpticalSwitch, ingress, eg)
}

func portStatusFilter(port int) string {
	return fmt.Sprintf(`<port-config xmlns=%q><port><port-id>%d</port-id><status/></port></port-config>`,
		NSOpticalSwitch, port)
}

func portLabelsFilter() string {
	return fmt.Sprintf(`<port-config xmlns=%q><port><port-id/><label/></port></port-config>`,
		NSOpticalSwitch)
}

func attenuationFilter() string {
	return fmt.Sprintf(`<voa xmlns=%q><port><port-id/><atten-level/></port></voa>`,
		NSOpticalSwitch)
}

// Config documents (contents of <config> in edit-config)

// crossConnectsConfig builds one batched pair list: a single edit-config
// applying every cross-connect together.
func crossConnectsConfig(pairs []types.CrossConnect) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<cross-connects xmlns=%q>`, NSOpticalSwitch)
	for _, p := range pairs {
		fmt.Fprintf(&sb, "<pair><ingress>%d</ingress><egress>%d</egress></pair>", p.Ingress, p.Egress)
	}
	sb.WriteString("</cross-connects>")
	return sb.String()
}

// deleteCrossConnectsConfig builds one batched delete list keyed by ingress.
func deleteCrossConnectsConfig(ingresses []int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<cross-connects xmlns=%q xmlns:nc=%q>`, NSOpticalSwitch, NSNetconfBase)
	for _, ing := range ingresses {
		fmt.Fprintf(&sb, `<pair nc:operation="delete"><ingress>%d</ingress></pair>`, ing)
	}
	sb.WriteString("</cross-connects>")
	return sb.String()
}

func voaConfig(port int, s types.VOASettings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<voa xmlns=%q><port><port-id>%d</port-id><atten-mode>%s</atten-mode>`,
		NSOpticalSwitch, port, s.Mode)
	if s.AttenLevelDb != nil {
		fmt.Fprintf(&sb, "<atten-level>%.2f</atten-level>", *s.AttenLevelDb)
	}
	if s.ReferencePort != nil {
		fmt.Fprintf(&sb, "<reference-port>%d</reference-port>", *s.ReferencePort)
	}
	sb.WriteString("</port></voa>")
	return sb.String()
}

func opmConfig(port int, s types.OPMSettings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<opm-config xmlns=%q><port><port-id>%d</port-id>`, NSOpticalSwitch, port)
	if s.WavelengthNm != nil {
		fmt.Fprintf(&sb, "<wavelength>%.2f</wavelength>", *s.WavelengthNm)
	}
	if s.OffsetDb != nil {
		fmt.Fprintf(&sb, "<offset>%.2f</offset>", *s.OffsetDb)
	}
	sb.WriteString("</port></opm-config>")
	return sb.String()
}

// shutterRPC builds the polatis-switch port-shutter-set-state RPC body.
func shutterRPC(port int, enabled bool) string {
	elem := "port-disab"
	if enabled {
		elem = "port-enab"
	}
	return fmt.Sprintf(`<port-shutter-set-state xmlns=%q><%s>%d</%s></port-shutter-set-state>`,
		NSPolatisSwitch, elem, port, elem)
}

// Reply parsing. encoding/xml matches on local names, so the Polatis
// namespace prefixes in replies need no special handling.

type xmlPort struct {
	PortID string `xml:"port-id"`
	Power  string `xml:"power"`
	Label  string `xml:"label"`
	Status string `xml:"status"`
	Atten  string `xml:"atten-level"`
}

type xmlPair struct {
	Ingress string `xml:"ingress"`
	Egress  string `xml:"egress"`
}

type xmlReply struct {
	XMLName xml.Name `xml:"rpc-reply"`
	Data    struct {
		OpmPower struct {
			Ports []xmlPort `xml:"port"`
		} `xml:"opm-power"`
		PortConfig struct {
			Ports []xmlPort `xml:"port"`
		} `xml:"port-config"`
		VOA struct {
			Ports []xmlPort `xml:"port"`
		} `xml:"voa"`
		CrossConnects struct {
			Pairs []xmlPair `xml:"pair"`
		} `xml:"cross-connects"`
	} `xml:"data"`
}

func parseReply(data []byte) (*xmlReply, error) {
	var reply xmlReply
	if err := xml.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("malformed NETCONF reply: %w", err)
	}
	return &reply, nil
}

// parsePowerMap extracts port-id -> power from an opm-power reply, skipping
// entries the switch reports without a numeric reading.
func parsePowerMap(data []byte) (map[int]float64, error) {
	reply, err := parseReply(data)
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(reply.Data.OpmPower.Ports))
	for _, p := range reply.Data.OpmPower.Ports {
		id, err := strconv.Atoi(strings.TrimSpace(p.PortID))
		if err != nil {
			continue
		}
		pwr, err := strconv.ParseFloat(strings.TrimSpace(p.Power), 64)
		if err != nil {
			continue
		}
		out[id] = pwr
	}
	return out, nil
}

// parseCrossConnects extracts (ingress, egress) pairs from a reply.
func parseCrossConnects(data []byte) ([]types.CrossConnect, error) {
	reply, err := parseReply(data)
	if err != nil {
		return nil, err
	}
	pairs := make([]types.CrossConnect, 0, len(reply.Data.CrossConnects.Pairs))
	for _, p := range reply.Data.CrossConnects.Pairs {
		ing, err := strconv.Atoi(strings.TrimSpace(p.Ingress))
		if err != nil {
			continue
		}
		eg, err := strconv.Atoi(strings.TrimSpace(p.Egress))
		if err != nil {
			continue
		}
		pairs = append(pairs, types.CrossConnect{Ingress: ing, Egress: eg})
	}
	return pairs, nil
}

// parseLabelMap extracts port-id -> label from a port-config reply.
func parseLabelMap(data []byte) (map[int]string, error) {
	reply, err := parseReply(data)
	if err != nil {
		return nil, err
	}
	out := make(map[int]string, len(reply.Data.PortConfig.Ports))
	for _, p := range reply.Data.PortConfig.Ports {
		id, err := strconv.Atoi(strings.TrimSpace(p.PortID))
		if err != nil || p.Label == "" {
			continue
		}
		out[id] = p.Label
	}
	return out, nil
}

// parseAttenMap extracts port-id -> atten-level from a voa reply.
func parseAttenMap(data []byte) (map[int]float64, error) {
	reply, err := parseReply(data)
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(reply.Data.VOA.Ports))
	for _, p := range reply.Data.VOA.Ports {
		id, err := strconv.Atoi(strings.TrimSpace(p.PortID))
		if err != nil {
			continue
		}
		lvl, err := strconv.ParseFloat(strings.TrimSpace(p.Atten), 64)
		if err != nil {
			continue
		}
		out[id] = lvl
	}
	return out, nil
}
