package netconf

import (
	"strings"
	"testing"

	"github.com/optolab/oxc-southbound/types"
)

func TestCrossConnectsConfigBatchesAllPairs(t *testing.T) {
	cfg := crossConnectsConfig([]types.CrossConnect{
		{Ingress: 229, Egress: 406},
		{Ingress: 231, Egress: 408},
	})

	if strings.Count(cfg, "<pair>") != 2 {
		t.Fatalf("expected 2 pairs in one document, got:\n%s", cfg)
	}
	for _, want := range []string{
		"<ingress>229</ingress><egress>406</egress>",
		"<ingress>231</ingress><egress>408</egress>",
		NSOpticalSwitch,
	} {
		if !strings.Contains(cfg, want) {
			t.Errorf("expected config to contain %q, got:\n%s", want, cfg)
		}
	}
}

func TestDeleteCrossConnectsConfig(t *testing.T) {
	cfg := deleteCrossConnectsConfig([]int{229, 231})

	if strings.Count(cfg, `nc:operation="delete"`) != 2 {
		t.Fatalf("expected 2 delete operations, got:\n%s", cfg)
	}
	// Deletes are keyed by ingress only
	if strings.Contains(cfg, "<egress>") {
		t.Errorf("delete document must not carry egress, got:\n%s", cfg)
	}
}

func TestVoaConfigOmitsUnsetFields(t *testing.T) {
	cfg := voaConfig(12, types.VOASettings{Mode: types.VOAModeMaximum})
	if strings.Contains(cfg, "atten-level") || strings.Contains(cfg, "reference-port") {
		t.Errorf("unset fields must be omitted, got:\n%s", cfg)
	}

	level := 3.5
	ref := 7
	cfg = voaConfig(12, types.VOASettings{
		Mode:          types.VOAModeRelative,
		AttenLevelDb:  &level,
		ReferencePort: &ref,
	})
	for _, want := range []string{"<atten-level>3.50</atten-level>", "<reference-port>7</reference-port>"} {
		if !strings.Contains(cfg, want) {
			t.Errorf("expected %q in config, got:\n%s", want, cfg)
		}
	}
}

func TestShutterRPC(t *testing.T) {
	rpc := shutterRPC(42, true)
	if !strings.Contains(rpc, "<port-enab>42</port-enab>") {
		t.Errorf("expected enable element, got %s", rpc)
	}
	rpc = shutterRPC(42, false)
	if !strings.Contains(rpc, "<port-disab>42</port-disab>") {
		t.Errorf("expected disable element, got %s", rpc)
	}
}

func TestParsePowerMap(t *testing.T) {
	reply := []byte(`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="3">
  <data>
    <opm-power xmlns="http://www.polatis.com/yang/optical-switch">
      <port><port-id>229</port-id><power>-3.21</power></port>
      <port><port-id>230</port-id><power>15.00</power></port>
      <port><port-id>231</port-id><power/></port>
    </opm-power>
  </data>
</rpc-reply>`)

	powers, err := parsePowerMap(reply)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(powers) != 2 {
		t.Fatalf("expected 2 readings (empty one skipped), got %d", len(powers))
	}
	if powers[229] != -3.21 {
		t.Errorf("port 229: expected -3.21, got %v", powers[229])
	}
	if powers[230] != 15.0 {
		t.Errorf("port 230: expected 15.00, got %v", powers[230])
	}
}

func TestParseCrossConnects(t *testing.T) {
	reply := []byte(`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="4">
  <data>
    <cross-connects xmlns="http://www.polatis.com/yang/optical-switch">
      <pair><ingress>229</ingress><egress>406</egress></pair>
      <pair><ingress>231</ingress><egress>408</egress></pair>
    </cross-connects>
  </data>
</rpc-reply>`)

	pairs, err := parseCrossConnects(reply)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0] != (types.CrossConnect{Ingress: 229, Egress: 406}) {
		t.Errorf("unexpected first pair: %+v", pairs[0])
	}
}

func TestParseLabelAndAttenMaps(t *testing.T) {
	labels, err := parseLabelMap([]byte(`<rpc-reply><data>
    <port-config xmlns="http://www.polatis.com/yang/optical-switch">
      <port><port-id>1</port-id><label>TXP_A_OUT</label></port>
      <port><port-id>2</port-id></port>
    </port-config>
  </data></rpc-reply>`))
	if err != nil {
		t.Fatalf("label parse failed: %v", err)
	}
	if labels[1] != "TXP_A_OUT" || len(labels) != 1 {
		t.Errorf("unexpected labels: %v", labels)
	}

	atten, err := parseAttenMap([]byte(`<rpc-reply><data>
    <voa xmlns="http://www.polatis.com/yang/optical-switch">
      <port><port-id>5</port-id><atten-level>2.50</atten-level></port>
    </voa>
  </data></rpc-reply>`))
	if err != nil {
		t.Fatalf("atten parse failed: %v", err)
	}
	if atten[5] != 2.5 {
		t.Errorf("unexpected attenuation map: %v", atten)
	}
}

func TestExtractRPCError(t *testing.T) {
	reply := []byte(`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <rpc-error>
    <error-type>application</error-type>
    <error-tag>data-missing</error-tag>
    <error-message>pair does not exist</error-message>
  </rpc-error>
</rpc-reply>`)

	msg := extractRPCError(reply)
	if !strings.Contains(msg, "data-missing") || !strings.Contains(msg, "pair does not exist") {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestParseHello(t *testing.T) {
	hello := []byte(`<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <capabilities>
    <capability>urn:ietf:params:netconf:base:1.0</capability>
    <capability>urn:ietf:params:netconf:capability:writable-running:1.0</capability>
  </capabilities>
  <session-id>77</session-id>
</hello>`)

	caps, sid := parseHello(hello)
	if len(caps) != 2 {
		t.Fatalf("expected 2 capabilities, got %d", len(caps))
	}
	if sid != "77" {
		t.Errorf("expected session id 77, got %q", sid)
	}
}
