package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/danmuck/fingerctl/internal/device"
	"github.com/danmuck/fingerctl/internal/finger"
	"github.com/danmuck/fingerctl/internal/protocol/frame"
	"github.com/danmuck/fingerctl/internal/protocol/session"
	"github.com/dustin/go-humanize"
)

type terminalFlags struct {
	host    string
	port    int
	timeout time.Duration
}

func (f *terminalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.host, "host", finger.DefaultHost, "terminal host or ip")
	fs.IntVar(&f.port, "port", finger.DefaultPort, "terminal tcp port")
	fs.DurationVar(&f.timeout, "timeout", session.DefaultTimeout, "per-exchange timeout")
}

func runRead(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	var term terminalFlags
	term.register(fs)
	rawMode := fs.String("mode", string(frame.ModeAll), "log selection: all|new")
	names := fs.Bool("names", false, "resolve user codes through the roster")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	mode, err := frame.ParseMode(*rawMode)
	if err != nil {
		return err
	}

	var roster map[string]string
	if *names {
		roster, err = finger.ListRoster(ctx, term.host, term.port, term.timeout)
		if err != nil {
			return err
		}
	}
	t := session.NewTransport(session.Addr(term.host, term.port), session.ConfigWithTimeout(term.timeout))
	start := time.Now()
	res, err := finger.NewReader(t, finger.WithNames(roster)).ReadAttendance(ctx, mode)
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(stdout, res)
	}
	fmt.Fprintln(stdout, res.Report)
	fmt.Fprintf(stdout, "\n%s records from %d users across %d pages in %s\n",
		humanize.Comma(int64(res.Records)), len(res.Attendance), res.Pages,
		time.Since(start).Round(time.Millisecond))
	return nil
}

func runRoster(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("roster", flag.ContinueOnError)
	var term terminalFlags
	term.register(fs)
	asJSON := fs.Bool("json", false, "print the roster as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	names, err := finger.ListRoster(ctx, term.host, term.port, term.timeout)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, names)
	}
	codes := make([]string, 0, len(names))
	for code := range names {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(stdout, "%s : %s\n", code, names[code])
	}
	return nil
}

func runProbe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	var term terminalFlags
	term.register(fs)
	ping := fs.Bool("ping", false, "also send one ICMP echo with the system ping")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := device.Prober{Timeout: term.timeout}
	if *ping {
		start := time.Now()
		if err := p.Ping(ctx, term.host); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "ping %s ok (%s)\n", term.host, time.Since(start).Round(time.Millisecond))
	}
	start := time.Now()
	if err := p.TCP(ctx, term.host, term.port); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "tcp %s ok (%s)\n", session.Addr(term.host, term.port), time.Since(start).Round(time.Millisecond))
	return nil
}
