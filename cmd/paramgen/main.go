// =============================================================================
// paramgen - Main Entry Point
// =============================================================================
//
// paramgen turns the parameter declarations scattered over a driver's
// header, implementation and UI description into one registry, and
// regenerates everything that depends on it from that registry.
//
// THE PIPELINE:
//   1. Scanner reads the three legacy declaration idioms into one list
//   2. Tree builder groups the list and picks a widget per parameter
//   3. CUE validator enforces the UI tree contract
//   4. OPA evaluates lint rules against the list
//   5. Merge resolver drops what the base module already provides
//   6. Emitters write the registry, inline class, UI tree and migrated module
//
// WHEN A GENERATED FILE LOOKS WRONG:
//   Start at the beginning of the pipeline, not the end!
//   Scanner issues -> Tree issues -> Emitter issues
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errFindings):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
