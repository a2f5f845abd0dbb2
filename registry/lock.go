package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/optolab/oxc-southbound/types"
)

// MySQL advisory locks. GET_LOCK is session-scoped, so every lock in a set
// must be taken and released on the same connection; the set is pinned to one
// pooled connection for its lifetime.

const lockWaitSeconds = 10

// lockName namespaces a device name into the server-wide lock namespace.
// MySQL caps lock names at 64 characters; device names in the directory are
// far shorter.
func lockName(device string) string {
	return "oxc:" + device
}

// LockDevices implements Locker: one named lock per unique device, acquired
// in sorted order. The sentinel name is skipped. The returned release
// function unlocks everything and returns the connection to the pool.
func (r *Registry) LockDevices(ctx context.Context, names []string) (func() error, error) {
	unique := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != types.NoDevice {
			unique[n] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(unique))
	for n := range unique {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	if len(ordered) == 0 {
		return func() error { return nil }, nil
	}

	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, &types.BackendError{System: "registry", Op: "lock", Err: err}
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, &types.BackendError{System: "registry", Op: "lock", Err: err}
	}

	held := make([]string, 0, len(ordered))
	releaseHeld := func() {
		// Best effort; closing the connection drops any leftover locks.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", lockName(held[i])) //nolint:errcheck
		}
		conn.Close()
	}

	for _, name := range ordered {
		var got *int
		row := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", lockName(name), lockWaitSeconds)
		if err := row.Scan(&got); err != nil {
			releaseHeld()
			return nil, &types.BackendError{System: "registry", Op: "lock", Err: err}
		}
		if got == nil || *got != 1 {
			releaseHeld()
			return nil, &types.BackendError{System: "registry", Op: "lock",
				Err: fmt.Errorf("device %q is locked by another request", name)}
		}
		held = append(held, name)
	}

	return func() error {
		releaseHeld()
		return nil
	}, nil
}

var _ Locker = (*Registry)(nil)
