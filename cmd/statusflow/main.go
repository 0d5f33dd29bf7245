package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-statusflow/catalog"
	"github.com/goliatone/go-statusflow/flow"
)

type cli struct {
	Config   string `help:"Catalog file (yaml, json or toml). The embedded consignment catalog is used when empty." short:"c"`
	LogLevel string `help:"Log level." default:"warn" enum:"trace,debug,info,warn,error"`
	LogJSON  bool   `help:"Emit JSON logs."`

	Validate validateCmd `cmd:"" help:"Validate a catalog and exit."`
	States   statesCmd   `cmd:"" help:"List the states of a catalog."`
	Show     showCmd     `cmd:"" help:"Render the workflow of an item."`
	Dispatch dispatchCmd `cmd:"" help:"Dry-run an action for an item."`
}

// runtime is bound into every command Run method.
type runtime struct {
	out        io.Writer
	logger     flow.Logger
	configPath string
}

func (rt *runtime) catalog() (*catalog.Catalog, error) {
	if rt.configPath == "" {
		return catalog.Default(catalog.WithLogger(rt.logger))
	}
	cfg, err := catalog.LoadConfig(rt.configPath)
	if err != nil {
		return nil, err
	}
	return catalog.Compile(cfg, catalog.WithLogger(rt.logger))
}

func run(args []string, stdout, stderr io.Writer) int {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("statusflow"),
		kong.Description("Inspect the consignment item status workflow."),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintf(stderr, "statusflow: %v\n", err)
		return 2
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "statusflow: %v\n", err)
		return 2
	}

	rt := &runtime{
		out:        stdout,
		logger:     newLogger(stderr, c.LogLevel, c.LogJSON),
		configPath: c.Config,
	}
	if err := kctx.Run(rt); err != nil {
		fmt.Fprintf(stderr, "statusflow: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
