// Command takeoff uploads construction documents, runs extractions and
// imports their results into project tables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, closeApp := rootCommand()
	err := root.ExecuteContext(ctx)
	closeApp()
	if err != nil {
		printError("error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func exitCode(err error) int {
	switch status.Code(common.ToStatus(err)) {
	case codes.InvalidArgument:
		return 2
	case codes.NotFound:
		return 3
	case codes.FailedPrecondition:
		return 4
	case codes.Unavailable:
		return 5
	default:
		return 1
	}
}
