package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/araddon/dateparse"

	"thunderbasics/internal/config"
	"thunderbasics/internal/daterange"
	"thunderbasics/internal/ics"
	appLog "thunderbasics/internal/log"
	"thunderbasics/internal/model"
	"thunderbasics/internal/watch"
	"thunderbasics/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	date       string
	unit       string
	options    string
	serve      bool
	watch      bool
	icsCount   int
	checkURL   string
}

func main() {
	flags := parseFlags(os.Args[1:])

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	err := run(ctx, flags, os.Stdout)
	appLog.Sync()
	if err != nil {
		appLog.Error("thunderbasics failed", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) flagConfig {
	var cfg flagConfig

	fs := flag.NewFlagSet("thunderbasics", flag.ExitOnError)
	fs.StringVar(&cfg.configPath, "config", "thunderbasics.yaml", "Path to config file")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.StringVar(&cfg.date, "date", "", "Reference date in any common layout (default: now)")
	fs.StringVar(&cfg.unit, "unit", "", "Resolve one ad-hoc unit instead of the configured ranges")
	fs.StringVar(&cfg.options, "options", "", "Comma separated options for -unit")
	fs.BoolVar(&cfg.serve, "serve", false, "Run the HTTP API")
	fs.BoolVar(&cfg.watch, "watch", false, "Recompute ranges on the refresh schedule and log changes")
	fs.IntVar(&cfg.icsCount, "ics", 0, "Write an iCalendar series of N steps to stdout")
	fs.StringVar(&cfg.checkURL, "check", "", "Fetch a published range feed and print its ranges")

	_ = fs.Parse(args)
	return cfg
}

func run(ctx context.Context, flags flagConfig, out io.Writer) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	appLog.SetLevel(level)

	appLog.Info("thunderbasics starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"ranges", len(conf.Ranges),
		"serve", flags.serve,
		"watch", flags.watch,
	)

	cal, err := conf.Calendar()
	if err != nil {
		return err
	}
	queries, err := selectQueries(conf, flags)
	if err != nil {
		return err
	}

	switch {
	case flags.checkURL != "":
		return runCheck(ctx, cal, flags.checkURL, out)
	case flags.serve || flags.watch:
		return runDaemon(ctx, conf, cal, queries, flags)
	}

	ref, err := referenceTime(cal, flags.date)
	if err != nil {
		return err
	}
	if flags.icsCount > 0 {
		return runExport(cal, queries, ref, flags.icsCount, out)
	}
	return runOnce(cal, queries, ref, out)
}

// selectQueries returns the ad-hoc -unit query when given, else the
// configured ranges.
func selectQueries(conf *config.Config, flags flagConfig) ([]model.Query, error) {
	if flags.unit == "" {
		return conf.Queries()
	}
	unit, err := daterange.ParseUnit(flags.unit)
	if err != nil {
		return nil, err
	}
	opts, err := daterange.ParseOptions(flags.options)
	if err != nil {
		return nil, err
	}
	return []model.Query{{Name: unit.String(), Unit: unit, Options: opts | conf.BaseOptions()}}, nil
}

func referenceTime(cal daterange.Calendar, raw string) (time.Time, error) {
	loc := cal.In(time.Time{}).Location()
	if strings.TrimSpace(raw) == "" {
		if cal.Now != nil {
			return cal.In(cal.Now()), nil
		}
		return time.Now().In(loc), nil
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, err)
	}
	return t.In(loc), nil
}

func runOnce(cal daterange.Calendar, queries []model.Query, ref time.Time, out io.Writer) error {
	for _, q := range queries {
		res, ok := q.Resolve(cal, ref)
		if !ok {
			return fmt.Errorf("range %q: calendar cannot resolve", q.Name)
		}
		printResolved(out, res)
	}
	return nil
}

func runExport(cal daterange.Calendar, queries []model.Query, ref time.Time, count int, out io.Writer) error {
	all := make([]model.Resolved, 0, count*len(queries))
	for _, q := range queries {
		series, err := ics.Series(cal, q, ref, count)
		if err != nil {
			return fmt.Errorf("range %q: %w", q.Name, err)
		}
		all = append(all, series...)
	}
	body, err := ics.Export(all, ics.ExportOptions{Name: "thunderbasics"})
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, body)
	return err
}

func runCheck(ctx context.Context, cal daterange.Calendar, rawURL string, out io.Writer) error {
	body, err := ics.NewFetcher(0).Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	loc := cal.In(time.Time{}).Location()
	resolved, err := ics.Parse(body, loc)
	if err != nil {
		return err
	}
	if len(resolved) == 0 {
		return errors.New("feed contains no ranges")
	}
	for _, res := range resolved {
		printResolved(out, res)
	}
	return nil
}

// runDaemon runs the watcher and/or HTTP server until ctx is cancelled.
func runDaemon(ctx context.Context, conf *config.Config, cal daterange.Calendar, queries []model.Query, flags flagConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

	var watcher *watch.Watcher
	if flags.watch {
		watcher = watch.New(cal, queries, watch.Options{Spec: conf.RefreshCron})
		sub := watcher.Subscribe(func(changed []model.Resolved) {
			for _, res := range changed {
				appLog.Info("range changed",
					"name", res.Query.Name,
					"start", res.Range.Start.Format(time.RFC3339),
					"end", res.Range.End.Format(time.RFC3339),
				)
			}
		})
		defer sub.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			fail(watcher.Start(ctx))
		}()
	}

	if flags.serve {
		srv, err := web.NewServer(conf, watcher)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail(srv.ListenAndServe(ctx))
		}()
	}

	wg.Wait()
	appLog.Info("thunderbasics exiting")
	return firstErr
}

func printResolved(out io.Writer, res model.Resolved) {
	opts := res.Query.Options.String()
	if opts == "" {
		opts = "-"
	}
	fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d days\n",
		res.Query.Name, res.Query.Unit, opts, res.Range, res.Range.Days())
}
