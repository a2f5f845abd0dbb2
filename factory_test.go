package southbound

import (
	"testing"

	"github.com/optolab/oxc-southbound/types"
)

func TestNewDriverDefaultsToNETCONF(t *testing.T) {
	d, err := NewDriver(&SwitchConfig{Name: "oxc-1", Address: "10.0.0.5"})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	if d.IsConnected() {
		t.Error("driver must not be connected before Connect")
	}
}

func TestNewDriverPerProtocol(t *testing.T) {
	for _, p := range []Protocol{ProtocolNETCONF, ProtocolSNMP, ProtocolMock} {
		if _, err := NewDriver(&SwitchConfig{Name: "oxc-1", Address: "10.0.0.5", Protocol: p}); err != nil {
			t.Errorf("protocol %s: %v", p, err)
		}
	}
}

func TestNewDriverRejectsUnknownProtocol(t *testing.T) {
	if _, err := NewDriver(&SwitchConfig{Address: "10.0.0.5", Protocol: "tl1"}); err == nil {
		t.Fatal("expected error for unknown protocol")
	}
	if _, err := NewDriver(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestCapabilityMatrix(t *testing.T) {
	caps, ok := GetProtocolCapabilities(types.ProtocolSNMP)
	if !ok {
		t.Fatal("snmp missing from capability matrix")
	}
	if caps.Config || !caps.Monitoring {
		t.Errorf("snmp must be monitoring-only, got %+v", caps)
	}
	if len(GetSupportedProtocols()) != len(CapabilityMatrix) {
		t.Error("GetSupportedProtocols out of sync with matrix")
	}
}
