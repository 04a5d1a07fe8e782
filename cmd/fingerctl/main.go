package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/fingerctl/internal/logging"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const usage = `usage: fingerctl <command> [flags]

commands:
  read    read attendance logs from a terminal
  roster  list the users enrolled on a terminal
  probe   check that a terminal is reachable
  serve   poll configured terminals and serve the HTTP API
  init    write or validate config templates
`

func main() {
	// a missing .env is fine
	_ = godotenv.Load()
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "read":
		err = runRead(ctx, args[1:], stdout)
	case "roster":
		err = runRoster(ctx, args[1:], stdout)
	case "probe":
		err = runProbe(ctx, args[1:], stdout)
	case "serve":
		err = runServe(ctx, args[1:])
	case "init":
		err = runInit(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "fingerctl: unknown command %q\n", args[0])
		fmt.Fprint(stderr, usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "fingerctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
