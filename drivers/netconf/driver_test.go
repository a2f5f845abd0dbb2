package netconf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/optolab/oxc-southbound/types"
)

// silentReader blocks until closed, like a switch that accepts the session
// but never replies.
type silentReader struct{ stop chan struct{} }

func (r *silentReader) Read(p []byte) (int, error) {
	<-r.stop
	return 0, io.EOF
}

func newSilentDriver(timeout time.Duration) (*Driver, *silentReader) {
	r := &silentReader{stop: make(chan struct{})}
	d := &Driver{
		config:    &types.SwitchConfig{Name: "oxc-1", Address: "test", Timeout: timeout},
		log:       zap.NewNop(),
		connected: true,
		stdin:     &netconfWriter{writer: &bytes.Buffer{}},
		stdout:    &netconfReader{reader: r},
	}
	return d, r
}

func TestRPCTimesOutOnSilentSwitch(t *testing.T) {
	d, r := newSilentDriver(50 * time.Millisecond)
	defer close(r.stop)

	done := make(chan error, 1)
	go func() {
		done <- d.EditConfig(context.Background(),
			crossConnectsConfig([]types.CrossConnect{{Ingress: 229, Egress: 406}}))
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("EditConfig still blocked long after the configured timeout")
	}
	if d.IsConnected() {
		t.Error("session must be marked unusable after a reply timeout")
	}
}

func TestRPCHonorsContextExpiry(t *testing.T) {
	d, r := newSilentDriver(10 * time.Second)
	defer close(r.stop)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := d.Get(ctx, crossConnectsFilter())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get still blocked long after context expiry")
	}
	if d.IsConnected() {
		t.Error("session must be marked unusable after an abandoned RPC")
	}
}

func TestParseChunkedMessageSingleChunk(t *testing.T) {
	got, err := parseChunkedMessage([]byte("\n#5\nhello\n##\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
}

func TestParseChunkedMessageMultiChunk(t *testing.T) {
	raw := []byte("\n#11\n<rpc-reply>\n#7\n<data/>\n#12\n</rpc-reply>\n##\n")
	got, err := parseChunkedMessage(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := "<rpc-reply><data/></rpc-reply>"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseChunkedMessageMalformed(t *testing.T) {
	if _, err := parseChunkedMessage([]byte("\n#xx\nboom\n##\n")); err == nil {
		t.Error("expected error for non-numeric chunk size")
	}
	if _, err := parseChunkedMessage([]byte("no frame header")); err == nil {
		t.Error("expected error for missing frame header")
	}
}
