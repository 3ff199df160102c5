package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"calgrid/internal/capture"
	"calgrid/internal/config"
	"calgrid/internal/demo"
	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
	"calgrid/internal/refresh"
	"calgrid/internal/store"
	"calgrid/internal/term"
	"calgrid/internal/web"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "calgrid",
		Usage:   "Calendar views (month, week, day, agenda) over local and ICS events.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "./config.yaml", EnvVars: []string{"CALGRID_CONFIG"}, Usage: "Path to config file"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"CALGRID_LOG_LEVEL"}, Usage: "debug, info, warn or error (overrides config)"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			showCommand(),
			exportCommand(),
			captureCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("calgrid failed", err)
		os.Exit(1)
	}
}

// appEnv bundles what every command needs.
type appEnv struct {
	cfg   *config.Config
	store *store.Store
}

// setup loads config, applies the log level and seeds the store.
func setup(c *cli.Context) (*appEnv, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	var seed []model.Event
	if cfg.Demo {
		now := time.Now().In(cfg.Location())
		for _, offset := range []int{-1, 0, 1} {
			month := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, now.Location())
			seed = append(seed, demo.Events(month)...)
		}
	}

	appLog.Debug("effective config",
		"config", c.String("config"),
		"timezone", cfg.Timezone,
		"week_start", cfg.WeekStart,
		"refresh", cfg.RefreshCron,
		"ics_count", len(cfg.ICS),
		"demo", cfg.Demo,
	)
	return &appEnv{cfg: cfg, store: store.New(seed)}, nil
}

func (rt *appEnv) refresher() *refresh.Refresher {
	sources := make([]ics.Source, 0, len(rt.cfg.ICS))
	for _, src := range rt.cfg.ICS {
		sources = append(sources, ics.Source{ID: src.SourceID(), URL: src.URL})
	}
	return refresh.New(ics.NewFetcher(rt.cfg.CacheDir, nil), rt.store, refresh.Options{
		Sources:      sources,
		Location:     rt.cfg.Location(),
		BackfillDays: rt.cfg.BackfillDays,
		HorizonDays:  rt.cfg.HorizonDays,
		Schedule:     rt.cfg.RefreshCron,
	})
}

// fetchOnce pulls ICS sources once; failures are logged, not fatal.
func (rt *appEnv) fetchOnce(ctx context.Context) {
	if len(rt.cfg.ICS) == 0 {
		return
	}
	if err := rt.refresher().RunOnce(ctx); err != nil {
		appLog.Error("ics refresh incomplete", err)
	}
}

func (rt *appEnv) parseDate(s string) (time.Time, error) {
	loc := rt.cfg.Location()
	if s == "" {
		return layout.StartOfDay(time.Now().In(loc)), nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web UI, JSON API and WebSocket feed.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
			&cli.BoolFlag{Name: "no-refresh", Usage: "Do not fetch ICS sources"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c)
			if err != nil {
				return err
			}
			if l := c.String("listen"); l != "" {
				rt.cfg.Listen = l
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			appLog.Info("calgrid starting", "version", version, "listen", rt.cfg.Listen, "events", len(rt.store.Snapshot().Events))

			if !c.Bool("no-refresh") && len(rt.cfg.ICS) > 0 {
				if err := rt.refresher().Start(ctx); err != nil {
					return err
				}
			}

			srv := web.NewServer(rt.cfg, rt.store)
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			appLog.Info("calgrid exiting")
			return nil
		},
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print a calendar view to stdout.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "view", Value: string(model.ViewMonth), Usage: "month, week, day or agenda"},
			&cli.StringFlag{Name: "date", Usage: "Reference date YYYY-MM-DD (default today)"},
			&cli.BoolFlag{Name: "json", Usage: "Print the layout as JSON"},
			&cli.IntFlag{Name: "width", Value: term.DefaultWidth, Usage: "Terminal width"},
			&cli.BoolFlag{Name: "fetch", Usage: "Fetch ICS sources before rendering"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c)
			if err != nil {
				return err
			}
			mode, err := model.ParseViewMode(c.String("view"))
			if err != nil {
				return err
			}
			date, err := rt.parseDate(c.String("date"))
			if err != nil {
				return err
			}
			if c.Bool("fetch") {
				rt.fetchOnce(c.Context)
			}

			view, err := layout.Build(mode, rt.store.Snapshot().Events, date, rt.cfg.LayoutOptions())
			if err != nil {
				return err
			}

			out := c.App.Writer
			if c.Bool("json") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			text, err := term.NewRenderer(rt.cfg.Styles(), c.Int("width")).Render(view)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, text)
			return err
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write every event as an ICS calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "-", Usage: "Output file, - for stdout"},
			&cli.BoolFlag{Name: "fetch", Usage: "Fetch ICS sources before exporting"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c)
			if err != nil {
				return err
			}
			if c.Bool("fetch") {
				rt.fetchOnce(c.Context)
			}

			var w io.Writer = c.App.Writer
			if path := c.String("out"); path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			snap := rt.store.Snapshot()
			if err := ics.Export(w, snap.Events, ""); err != nil {
				return err
			}
			appLog.Info("export completed", "events", len(snap.Events), "out", c.String("out"))
			return nil
		},
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Screenshot the calendar page of a running server.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Server base URL (default http://<listen>)"},
			&cli.StringFlag{Name: "view", Value: string(model.ViewMonth), Usage: "month, week, day or agenda"},
			&cli.StringFlag{Name: "date", Usage: "Reference date YYYY-MM-DD (default today)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "./cache/calendar.png", Usage: "PNG output path"},
			&cli.IntFlag{Name: "width", Usage: "Viewport width"},
			&cli.IntFlag{Name: "height", Usage: "Viewport height"},
		},
		Action: func(c *cli.Context) error {
			rt, err := setup(c)
			if err != nil {
				return err
			}
			if _, err := model.ParseViewMode(c.String("view")); err != nil {
				return err
			}

			base := c.String("url")
			if base == "" {
				base = "http://" + rt.cfg.Listen
			}
			opts := capture.Options{
				BaseURL:    base,
				View:       c.String("view"),
				Date:       c.String("date"),
				OutputPath: filepath.Clean(c.String("out")),
				Width:      c.Int("width"),
				Height:     c.Int("height"),
			}
			if rt.cfg.BasicAuth != nil {
				opts.Username = rt.cfg.BasicAuth.Username
				opts.Password = rt.cfg.BasicAuth.Password
			}

			if err := capture.CaptureCalendarPNG(c.Context, opts); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("%w (is the server running at %s?)", err, base)
				}
				return err
			}
			return nil
		},
	}
}
