// Command mailqueue sends email batches through a rate-limited job queue.
//
//	mailqueue send  -file batch.yaml [-timeout 30m] [-webhook URL] [-direct]
//	mailqueue serve [-file batch.yaml]
//
// Configuration comes from the environment and an optional .env file; see
// the Config types of the pkg/ packages for variable names.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: mailqueue <command> [flags]

commands:
  send   run one batch file through an ephemeral queue and print the summary
         (-direct sends it in one rate-limited provider call instead)
  serve  run the durable queue with the admin API until interrupted
`

// errPartialFailure marks a batch that finished with failed messages.
var errPartialFailure = errors.New("some messages failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errPartialFailure):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "mailqueue:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "send":
		return runSend(ctx, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}
