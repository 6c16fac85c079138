package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/coder/quartz"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"golang.org/x/xerrors"

	"ulogme/config"
	"ulogme/entity"
	"ulogme/launch"
	"ulogme/logicalday"
	"ulogme/manager"
	"ulogme/platform"
	"ulogme/query"
	"ulogme/seed"
	"ulogme/tracker"
	"ulogme/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: ulogme [flags] <command>

commands:
  start, run   record activity until interrupted
  summary      print the summary of a logical day
  seed         fill the database with sample data
  version      print the version

flags:
`

type options struct {
	configPath string
	dbPath     string
	verbose    bool
	tray       bool
	web        bool
	date       string
	days       int
	seed       uint64
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ulogme:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("ulogme", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	fs.StringVarP(&opts.configPath, "config", "c", "", "configuration file (default: ulogme.toml in the working directory or a parent)")
	fs.StringVar(&opts.dbPath, "db", "", "database file, overrides the configuration")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	fs.BoolVar(&opts.tray, "tray", false, "show a tray icon while recording")
	fs.BoolVar(&opts.web, "web", false, "serve the JSON API while recording")
	fs.StringVar(&opts.date, "date", "", "logical day for summary, YYYY-MM-DD (default: today)")
	fs.IntVar(&opts.days, "days", 7, "days of sample data to generate, or of overview to print")
	fs.Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "random seed for sample data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return xerrors.New("expected exactly one command")
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.Make(sloghuman.Sink(stderr)).Leveled(level)

	switch cmd := fs.Arg(0); cmd {
	case "version":
		fmt.Fprintln(stdout, "ulogme", version)
		return nil
	case "start", "run", "summary", "seed":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg := loadConfig(ctx, logger, opts)
		switch cmd {
		case "summary":
			return summary(ctx, cfg, opts, stdout)
		case "seed":
			return seedData(ctx, cfg, opts, stdout)
		default:
			return record(ctx, stop, cfg, opts, logger)
		}
	default:
		fs.Usage()
		return xerrors.Errorf("unknown command %q", cmd)
	}
}

// loadConfig never fails: problems are logged once and defaults kept.
func loadConfig(ctx context.Context, logger slog.Logger, opts options) *config.Config {
	osFs := afero.NewOsFs()
	path := opts.configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = config.Find(osFs, wd)
		}
	}
	cfg, err := config.Load(osFs, path)
	if err != nil {
		logger.Warn(ctx, "configuration problems, using defaults for these settings",
			slog.F("path", path), slog.Error(err))
	} else if path != "" {
		logger.Debug(ctx, "configuration loaded", slog.F("path", path))
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	if opts.web {
		cfg.WebEnabled = true
	}
	return cfg
}

func openStore(ctx context.Context, cfg *config.Config) (*query.Database, error) {
	db, err := query.Open(ctx, cfg.DBDriver, cfg.AbsoluteDBPath())
	if err != nil {
		return nil, xerrors.Errorf("open store %s: %w", cfg.AbsoluteDBPath(), err)
	}
	return db, nil
}

func record(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, opts options, logger slog.Logger) (err error) {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			err = multierror.Append(err, xerrors.Errorf("close store: %w", cerr)).ErrorOrNil()
		}
	}()

	clock := quartz.NewReal()
	osName := platform.Current()

	window := tracker.NewWindowTracker(db, tracker.WindowOptions{
		Titles:       platform.Titles{OS: osName, Run: platform.Exec},
		Browsers:     platform.BrowserURLs{OS: osName, Run: platform.Exec},
		WindowTitles: cfg.WindowTitles,
		BrowserTabs:  cfg.BrowserTabs,
		BrowserURLs:  cfg.BrowserURLs,
		BoundaryHour: cfg.BoundaryHour,
		Location:     cfg.Location,
		Clock:        clock,
		Logger:       logger.Named("window"),
	})

	var keys *tracker.KeyCounter
	var keyPoller launch.KeyPoller
	if cfg.Keystrokes {
		keys = tracker.NewKeyCounter(db, tracker.KeyOptions{
			Window:       cfg.KeystrokeWindow,
			BoundaryHour: cfg.BoundaryHour,
			Location:     cfg.Location,
			Clock:        clock,
			Logger:       logger.Named("keys"),
		})
		keyPoller = keys
	}

	daemon := launch.New(window, keyPoller, launch.Options{
		Interval: cfg.PollInterval,
		Clock:    clock,
		Logger:   logger.Named("daemon"),
	})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs *multierror.Error
	)
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				errs = multierror.Append(errs, xerrors.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	spawn("daemon", func() error { return daemon.Run(ctx) })

	watcher := &platform.FrontAppWatcher{
		OS:       osName,
		Run:      platform.Exec,
		Interval: time.Second,
		Clock:    clock,
		Logger:   logger.Named("frontapp"),
	}
	spawn("front application watcher", func() error { return watcher.Watch(ctx, daemon) })

	if keys != nil {
		devices, err := platform.KeyboardDevices()
		if err != nil {
			logger.Warn(ctx, "keystroke counting disabled", slog.Error(err))
		} else {
			spawn("keyboard", func() error {
				err := platform.WatchKeyboards(ctx, devices, keys, logger.Named("keyboard"))
				if xerrors.Is(err, tracker.ErrUnavailable) {
					logger.Warn(ctx, "keystroke counting disabled", slog.Error(err))
					return nil
				}
				return err
			})
		}
	}

	if cfg.WebEnabled {
		categories := manager.NewCategoryManager(cfg.CategoryRules, cfg.HackingCategories)
		srv := web.NewServer(db, categories, web.Options{
			BoundaryHour: cfg.BoundaryHour,
			Location:     cfg.Location,
			Clock:        clock,
			Logger:       logger.Named("web"),
		})
		spawn("web", func() error { return srv.ListenAndServe(ctx, cfg.WebListen) })
	}

	if opts.tray {
		launch.RunTray(ctx, cancel, daemon, clock, logger.Named("tray"))
	}
	<-ctx.Done()
	wg.Wait()
	return errs.ErrorOrNil()
}

func summary(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	date := logicalday.Resolve(time.Now().In(cfg.Location), cfg.BoundaryHour)
	if opts.date != "" {
		if date, err = logicalday.Parse(opts.date); err != nil {
			return err
		}
	}

	s, err := db.GetDailySummary(ctx, date)
	if err != nil {
		return err
	}
	events, err := db.GetWindowEventsForDate(ctx, date)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Logical day %s\n", date)
	fmt.Fprintf(out, "  keystrokes  %s in %s windows\n", humanize.Comma(s.TotalKeys), humanize.Comma(s.KeyEvents))
	fmt.Fprintln(out, "  applications")
	for _, app := range s.AppUsage {
		fmt.Fprintf(out, "    %-28s %s\n", launch.DisplayApp(app.AppName), humanize.Comma(app.EventCount))
	}

	categories := manager.NewCategoryManager(cfg.CategoryRules, cfg.HackingCategories)
	perCategory := map[string]int64{}
	for _, ev := range events {
		if ev.AppName != entity.LockedScreen {
			perCategory[categories.Categorize(ev.AppName, ev.WindowTitle)]++
		}
	}
	names := make([]string, 0, len(perCategory))
	for name := range perCategory {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if perCategory[names[i]] != perCategory[names[j]] {
			return perCategory[names[i]] > perCategory[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Fprintln(out, "  categories")
	for _, name := range names {
		mark := ""
		if categories.IsHacking(name) {
			mark = " *"
		}
		fmt.Fprintf(out, "    %-28s %s%s\n", name, humanize.Comma(perCategory[name]), mark)
	}

	days, err := db.GetOverview(ctx, logicalday.Date{}, date, opts.days)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Recent days")
	for _, d := range days {
		fmt.Fprintf(out, "  %s  %10s keys  %3d apps\n", d.LogicalDate, humanize.Comma(d.TotalKeys), d.UniqueApps)
	}
	return nil
}

func seedData(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	today := logicalday.Resolve(time.Now().In(cfg.Location), cfg.BoundaryHour)
	fmt.Fprintf(out, "Seeding %d days into %s\n", opts.days, cfg.AbsoluteDBPath())
	stats, err := seed.Generate(ctx, db, seed.Options{
		Days:     opts.days,
		Today:    today,
		Location: cfg.Location,
		Seed:     opts.seed,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s window events, %s key events (%s keystrokes), %d notes over %d days\n",
		humanize.Comma(int64(stats.WindowEvents)), humanize.Comma(int64(stats.KeyEvents)),
		humanize.Comma(stats.Keystrokes), stats.Notes, stats.Days)
	return nil
}
