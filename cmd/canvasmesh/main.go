package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/hupe1980/canvasmesh"
	"github.com/hupe1980/canvasmesh/config"
	"github.com/hupe1980/canvasmesh/graph"
)

// ExitError carries the process exit code for a failure.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// main is the entrypoint for the canvasmesh CLI.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the CLI logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	flagSet := flag.NewFlagSet("canvasmesh", flag.ContinueOnError)
	flagSet.SetOutput(outW)
	flagSet.Usage = func() {
		fmt.Fprint(outW, `
canvasmesh - run a JSON Canvas file as a completion graph.

Usage:
  canvasmesh [options] CANVAS_PATH

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	mockFlag := flagSet.Bool("mock", false, "Dry run: no provider calls, no note writes.")
	validateFlag := flagSet.Bool("validate", false, "Only validate the canvas with a dry run.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return &ExitError{Code: 2, Message: "expected exactly one canvas path"}
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = loaded
	}
	if *mockFlag {
		cfg.Mock = true
	}

	mesh, err := canvasmesh.FromConfig(cfg)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	g, err := mesh.Load(flagSet.Arg(0))
	if err != nil {
		return err
	}

	stoppage, err := mesh.Validate(ctx, g)
	if err != nil || *validateFlag {
		if encErr := report(outW, stoppage); encErr != nil {
			return encErr
		}
		return err
	}

	stoppage, err = mesh.Execute(ctx, g)
	if err != nil {
		return err
	}
	if err := report(outW, stoppage); err != nil {
		return err
	}
	if stoppage.Reason != graph.ReasonComplete {
		return &ExitError{Code: 1, Message: fmt.Sprintf("run %s: %s", stoppage.Reason, stoppage.Message)}
	}
	return nil
}

func report(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
