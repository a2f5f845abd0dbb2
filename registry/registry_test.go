package registry

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/optolab/oxc-southbound/types"
)

func TestSplitOwners(t *testing.T) {
	cases := []struct {
		column string
		want   []string
	}{
		{"", nil},
		{"   ", nil},
		{"alice", []string{"alice"}},
		{"alice,bob", []string{"alice", "bob"}},
		{" alice , bob ,", []string{"alice", "bob"}},
	}
	for _, tc := range cases {
		got := SplitOwners(tc.column)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SplitOwners(%q) = %v, want %v", tc.column, got, tc.want)
		}
	}
}

func TestMemDirectorySwappedPorts(t *testing.T) {
	reg := NewMem()
	reg.AddDevice("TXP_A", 405, 229, nil)

	ctx := context.Background()
	ing, err := reg.IngressPort(ctx, "TXP_A")
	if err != nil {
		t.Fatalf("IngressPort: %v", err)
	}
	if ing != 229 {
		t.Errorf("ingress must be the device out_port: got %d, want 229", ing)
	}
	eg, err := reg.EgressPort(ctx, "TXP_A")
	if err != nil {
		t.Fatalf("EgressPort: %v", err)
	}
	if eg != 405 {
		t.Errorf("egress must be the device in_port: got %d, want 405", eg)
	}
}

func TestMemDirectoryNotFound(t *testing.T) {
	reg := NewMem()
	_, err := reg.IngressPort(context.Background(), "GHOST")
	if !types.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMemMaxInputPower(t *testing.T) {
	reg := NewMem()
	limit := 10.0
	reg.AddDevice("RX_B", 406, 230, &limit)
	reg.AddDevice("RX_C", 407, 231, nil)

	ctx := context.Background()
	got, ok, err := reg.MaxInputPower(ctx, "RX_B")
	if err != nil || !ok || got != 10.0 {
		t.Errorf("RX_B: got (%v, %v, %v), want (10, true, nil)", got, ok, err)
	}
	_, ok, err = reg.MaxInputPower(ctx, "RX_C")
	if err != nil || ok {
		t.Errorf("RX_C: expected no configured limit, got ok=%v err=%v", ok, err)
	}
}

func TestMemOwnersAndOutage(t *testing.T) {
	reg := NewMem()
	reg.SetBooking("TXP_A", "alice,bob")

	owners, booked, err := reg.Owners(context.Background(), "TXP_A")
	if err != nil || !booked {
		t.Fatalf("Owners: booked=%v err=%v", booked, err)
	}
	if !reflect.DeepEqual(owners, []string{"alice", "bob"}) {
		t.Errorf("unexpected owners: %v", owners)
	}

	_, booked, err = reg.Owners(context.Background(), "UNBOOKED")
	if err != nil || booked {
		t.Errorf("unbooked device: booked=%v err=%v", booked, err)
	}

	reg.Err = errors.New("connection refused")
	_, _, err = reg.Owners(context.Background(), "TXP_A")
	if !types.IsBackend(err) {
		t.Errorf("expected BackendError during outage, got %v", err)
	}
}

func TestMemLockerOverlappingSets(t *testing.T) {
	reg := NewMem()
	ctx := context.Background()

	// Two goroutines lock overlapping device sets in opposite request
	// order. Sorted acquisition means this must not deadlock.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		names := []string{"A", "B", "C"}
		if i == 1 {
			names = []string{"C", "B", "A"}
		}
		wg.Add(1)
		go func(names []string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				release, err := reg.LockDevices(ctx, names)
				if err != nil {
					t.Errorf("LockDevices: %v", err)
					return
				}
				release()
			}
		}(names)
	}
	wg.Wait()
}

func TestDSNReportsFoundRows(t *testing.T) {
	cfg := Config{Host: "db", Port: 3306, User: "u", Database: "testbed"}
	dsn := cfg.dsn("u", "pw")

	// Without found-rows semantics a no-change UPDATE reports zero
	// affected rows and is indistinguishable from a missing row.
	if !strings.Contains(dsn, "clientFoundRows=true") {
		t.Errorf("expected clientFoundRows=true in DSN, got %q", dsn)
	}
	if !strings.Contains(dsn, "u:pw@tcp(db:3306)/testbed") {
		t.Errorf("unexpected DSN shape: %q", dsn)
	}
}

func TestMemSetOwnerIdempotent(t *testing.T) {
	reg := NewMem()
	reg.SetBooking("TXP_A", "alice")

	// Rewriting the owner to the same value twice must stay a no-op
	// success, never a duplicate-row failure.
	for i := 0; i < 2; i++ {
		if err := reg.SetOwner(context.Background(), []string{"TXP_A"}, "bob"); err != nil {
			t.Fatalf("SetOwner round %d: %v", i, err)
		}
	}
	owners, _, err := reg.Owners(context.Background(), "TXP_A")
	if err != nil || len(owners) != 1 || owners[0] != "bob" {
		t.Errorf("expected owner bob, got %v (err %v)", owners, err)
	}
}

func TestMemLockerSkipsSentinel(t *testing.T) {
	reg := NewMem()
	release, err := reg.LockDevices(context.Background(), []string{types.NoDevice})
	if err != nil {
		t.Fatalf("LockDevices: %v", err)
	}
	if err := release(); err != nil {
		t.Errorf("release: %v", err)
	}
}
