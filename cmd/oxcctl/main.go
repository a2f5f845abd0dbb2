// oxcctl is the operator CLI for the testbed optical switch: list and read
// the cross-connect table, provision and tear down patches, check and change
// device bookings.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	southbound "github.com/optolab/oxc-southbound"
	"github.com/optolab/oxc-southbound/provision"
	"github.com/optolab/oxc-southbound/registry"
	"github.com/optolab/oxc-southbound/types"
)

type options struct {
	Switch   string        `long:"switch" env:"OXC_SWITCH" description:"Switch management address" required:"true"`
	Port     int           `long:"port" env:"OXC_SWITCH_PORT" description:"Management port" default:"830"`
	Username string        `long:"username" env:"OXC_SWITCH_USER" description:"Switch username" default:"admin"`
	Password string        `long:"password" env:"OXC_SWITCH_PASSWORD" description:"Switch password"`
	Protocol string        `long:"protocol" env:"OXC_SWITCH_PROTOCOL" description:"Management protocol" default:"netconf" choice:"netconf" choice:"snmp" choice:"mock"`
	Timeout  time.Duration `long:"timeout" description:"Operation timeout" default:"30s"`
	User     string        `long:"user" env:"OXC_USER" description:"Acting testbed user"`
	Verbose  bool          `short:"v" long:"verbose" description:"Debug logging"`

	List      listCmd      `command:"list" description:"Show the live cross-connect table"`
	Power     powerCmd     `command:"power" description:"Read optical power on a port"`
	Table     tableCmd     `command:"table" description:"Show the patch table for SRC:DST pairs"`
	Apply     applyCmd     `command:"apply" description:"Provision SRC:DST patch pairs"`
	Teardown  teardownCmd  `command:"teardown" description:"Tear down SRC:DST patch pairs"`
	Authorize authorizeCmd `command:"authorize" description:"Check booking authorization for devices"`
	Release   releaseCmd   `command:"release" description:"Rewrite device bookings (admin)"`
}

var (
	opts options
	log  *zap.Logger
)

// newEngine dials the switch and the registry and wires the engine. The
// returned cleanup closes both.
func newEngine(ctx context.Context, admin bool) (*provision.Engine, func(), error) {
	sw, err := southbound.NewDriver(&types.SwitchConfig{
		Name:     opts.Switch,
		Address:  opts.Switch,
		Port:     opts.Port,
		Protocol: types.Protocol(opts.Protocol),
		Username: opts.Username,
		Password: opts.Password,
		Timeout:  opts.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := sw.Connect(ctx, nil); err != nil {
		return nil, nil, err
	}

	cfg := registry.DefaultConfig()
	reg, err := registry.Open(cfg)
	if err != nil {
		sw.Disconnect(ctx) //nolint:errcheck
		return nil, nil, err
	}

	engOpts := []provision.Option{
		provision.WithLogger(log),
		provision.WithLocker(reg),
	}
	if admin {
		adm, err := registry.OpenAdmin(cfg)
		if err != nil {
			sw.Disconnect(ctx) //nolint:errcheck
			return nil, nil, err
		}
		engOpts = append(engOpts, provision.WithAdmin(adm))
	}

	cleanup := func() {
		sw.Disconnect(context.Background()) //nolint:errcheck
	}
	return provision.NewEngine(sw, reg, reg, engOpts...), cleanup, nil
}

// parsePairs turns SRC:DST arguments into a patch request.
func parsePairs(args []string) (provision.PatchRequest, error) {
	var req provision.PatchRequest
	for _, arg := range args {
		src, dst, ok := strings.Cut(arg, ":")
		if !ok {
			return req, fmt.Errorf("bad pair %q, expected SRC:DST", arg)
		}
		req.Pairs = append(req.Pairs, provision.PatchPair{Source: src, Destination: dst})
	}
	return req, nil
}

type listCmd struct{}

func (c *listCmd) Execute(args []string) error {
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	pairs, err := eng.ListCrossConnects(ctx)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		fmt.Printf("%d -> %d\n", p.Ingress, p.Egress)
	}
	return nil
}

type powerCmd struct {
	Args struct {
		Port string `positional-arg-name:"PORT" required:"yes"`
	} `positional-args:"yes"`
}

func (c *powerCmd) Execute(args []string) error {
	port, err := strconv.Atoi(c.Args.Port)
	if err != nil {
		return fmt.Errorf("bad port %q", c.Args.Port)
	}
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	pwr, err := eng.ReadPower(ctx, port)
	if err != nil {
		return err
	}
	fmt.Printf("port %d: %.2f dBm\n", port, pwr)
	return nil
}

type tableCmd struct {
	Args struct {
		Pairs []string `positional-arg-name:"SRC:DST" required:"yes"`
	} `positional-args:"yes"`
}

func (c *tableCmd) Execute(args []string) error {
	req, err := parsePairs(c.Args.Pairs)
	if err != nil {
		return err
	}
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := eng.PatchTable(ctx, req)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Printf("%-20s %-12s port %-4d %.2f dBm\n", r.Device, r.Side, r.Port, r.PowerDbm)
	}
	return nil
}

type applyCmd struct {
	Args struct {
		Pairs []string `positional-arg-name:"SRC:DST" required:"yes"`
	} `positional-args:"yes"`
}

func (c *applyCmd) Execute(args []string) error {
	req, err := parsePairs(c.Args.Pairs)
	if err != nil {
		return err
	}
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := eng.Apply(ctx, req, opts.User)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Println(r)
	}
	return nil
}

type teardownCmd struct {
	Args struct {
		Pairs []string `positional-arg-name:"SRC:DST" required:"yes"`
	} `positional-args:"yes"`
}

func (c *teardownCmd) Execute(args []string) error {
	req, err := parsePairs(c.Args.Pairs)
	if err != nil {
		return err
	}
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.Teardown(ctx, req, opts.User); err != nil {
		return err
	}
	fmt.Println("torn down")
	return nil
}

type authorizeCmd struct {
	Args struct {
		Devices []string `positional-arg-name:"DEVICE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *authorizeCmd) Execute(args []string) error {
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ok, err := eng.Authorize(ctx, c.Args.Devices, opts.User)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("%s is authorized for %s\n", opts.User, strings.Join(c.Args.Devices, ", "))
	}
	return nil
}

type releaseCmd struct {
	Owner string `long:"owner" description:"New owner list (comma-separated), empty to free" required:"yes"`
	Args  struct {
		Devices []string `positional-arg-name:"DEVICE" required:"yes"`
	} `positional-args:"yes"`
}

func (c *releaseCmd) Execute(args []string) error {
	ctx := context.Background()
	eng, cleanup, err := newEngine(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	return eng.Release(ctx, c.Args.Devices, c.Owner)
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		var err error
		if opts.Verbose {
			log, err = zap.NewDevelopment()
		} else {
			log, err = zap.NewProduction()
		}
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck
		return cmd.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
