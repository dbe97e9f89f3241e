package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/config"
	"github.com/ayusman/wandsign/internal/hook"
	"github.com/ayusman/wandsign/internal/server"
	"github.com/ayusman/wandsign/internal/source"
	"github.com/ayusman/wandsign/internal/store"
	"github.com/ayusman/wandsign/internal/tray"
)

type runOptions struct {
	library  libraryOptions
	kind     string
	address  string
	path     string
	format   string
	paced    bool
	listen   string
	noServer bool
	tray     bool
	epsilon  float64
	disabled bool
	quiet    bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recognize gestures from the accelerometer stream",
		Long: `Read samples from the configured source, cut them into gestures and
classify each one against the gesture set. Recognized signs are logged,
recorded in the database, broadcast on /api/results and dispatched to the
bound hooks.

A file or pcap source stops the command once it is exhausted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}
			return runRecognizer(cmd.Context(), cfg, opts)
		},
	}

	opts.library.addFlags(cmd)
	f := cmd.Flags()
	f.StringVar(&opts.kind, "source", "", "sample source: udp, serial, file or pcap")
	f.StringVar(&opts.address, "address", "", "UDP listen address")
	f.StringVar(&opts.path, "path", "", "file or pcap path, or serial device")
	f.StringVar(&opts.format, "format", "", "payload format: wireless-imu or xyz")
	f.BoolVar(&opts.paced, "paced", false, "replay a pcap at capture speed")
	f.StringVar(&opts.listen, "listen", "", "HTTP listen address (default from config)")
	f.BoolVar(&opts.noServer, "no-server", false, "do not start the HTTP server")
	f.BoolVar(&opts.tray, "tray", false, "show the system tray indicator")
	f.Float64Var(&opts.epsilon, "epsilon", 0, "acceptance slack, at least 1 (default from config)")
	f.BoolVar(&opts.disabled, "disabled", false, "start with recognition turned off")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not log windows without a match or HTTP requests")
	return cmd
}

// apply overlays the flags that were set on cfg.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if o.kind != "" {
		cfg.Source.Kind = o.kind
	}
	if o.address != "" {
		cfg.Source.Address = o.address
	}
	if o.path != "" {
		if cfg.Source.Kind == source.KindSerial {
			cfg.Source.SerialPort = o.path
		} else {
			cfg.Source.Path = o.path
		}
	}
	if o.format != "" {
		cfg.Source.Format = o.format
	}
	if f.Changed("paced") {
		cfg.Source.Paced = o.paced
	}
	if o.listen != "" {
		cfg.Server.Listen = o.listen
	}
	if o.noServer {
		cfg.Server.Listen = ""
	}
	if f.Changed("tray") {
		cfg.Tray = o.tray
	}
	if f.Changed("epsilon") {
		cfg.Classifier.Epsilon = o.epsilon
	}
	return cfg.Validate()
}

func runRecognizer(ctx context.Context, cfg config.Config, opts *runOptions) error {
	fmt.Println("wandsign - Accelerometer Gesture Recognition")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	loaded, err := opts.library.load(cfg, st)
	if err != nil {
		return err
	}
	log.Printf("Loaded gesture set %q: %d signs, %d samples per template",
		loaded.name, loaded.lib.Len(), loaded.lib.SamplesPerTemplate())

	runner, err := newHookRunner(cfg, st, loaded.set)
	if err != nil {
		return err
	}
	defer runner.Close()

	src, err := source.Open(cfg.Source)
	if err != nil {
		return fmt.Errorf("failed to open %s source: %w", cfg.Source.Kind, err)
	}

	hub := server.NewHub()
	sinks := app.FanOut{
		{Name: "log", Sink: app.LogSink{Quiet: opts.quiet}},
		{Name: "store", Sink: st.Recognitions()},
		{Name: "hooks", Sink: runner},
	}
	if cfg.Server.Listen != "" {
		sinks = append(sinks, app.NamedSink{Name: "hub", Sink: hub})
	}

	var tr *tray.Tray
	if cfg.Tray {
		tr = tray.New(!opts.disabled)
		sinks = append(sinks, app.NamedSink{Name: "tray", Sink: tr})
	}

	appCfg := cfg.AppConfig()
	appCfg.Set = loaded.name
	appCfg.Disabled = opts.disabled
	pipeline := app.New(appCfg, loaded.lib, src, sinks)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serve := func() error {
		defer cancel()
		return serveRecognizer(ctx, cfg, opts, st, pipeline, hub, runner)
	}

	if tr == nil {
		return serve()
	}

	tr.OnToggle(pipeline.SetEnabled)
	tr.OnQuit(cancel)
	if url := dashboardURL(cfg.Server.Listen); url != "" {
		tr.OnDashboard(func() { openBrowser(url) })
	}

	errc := make(chan error, 1)
	go func() {
		errc <- serve()
		tr.Quit()
	}()
	// The tray owns the main thread until it quits.
	tr.Run()
	cancel()
	return <-errc
}

// serveRecognizer runs the pipeline and the HTTP server until the pipeline
// ends or ctx is cancelled.
func serveRecognizer(ctx context.Context, cfg config.Config, opts *runOptions, st *store.Store,
	pipeline *app.Pipeline, hub *server.Hub, runner *hook.Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	if cfg.Server.Listen != "" {
		srv := server.New(server.Config{
			Store:    st,
			Pipeline: pipeline,
			Hub:      hub,
			Hooks:    runner,
			Quiet:    opts.quiet,
		})
		go func() {
			err := srv.ListenAndServe(ctx, cfg.Server.Listen)
			if err != nil {
				log.Printf("HTTP server failed: %v", err)
				cancel()
			}
			srvErr <- err
		}()
	} else {
		srvErr <- nil
	}

	if err := pipeline.Start(ctx); err != nil {
		return err
	}
	err := pipeline.Wait()
	cancel()

	stats := pipeline.Stats()
	log.Printf("Classified %d windows: %d recognized, %d without a match",
		stats.WindowsClosed-stats.WindowsDropped, stats.Recognized, stats.NoMatch)

	return errors.Join(err, <-srvErr)
}

// newHookRunner discovers hooks and binds them from the config file and,
// for a stored set, from the database. Stored bindings take precedence.
func newHookRunner(cfg config.Config, st *store.Store, set *store.GestureSet) (*hook.Runner, error) {
	manager := hook.NewManager(cfg.Hooks.Dir)
	if err := manager.Discover(); err != nil {
		return nil, fmt.Errorf("failed to discover hooks: %w", err)
	}
	if hooks := manager.List(); len(hooks) > 0 {
		names := make([]string, len(hooks))
		for i, h := range hooks {
			names[i] = h.Manifest.Name
		}
		log.Printf("Discovered hooks: %s", strings.Join(names, ", "))
	}

	static, err := cfg.HookBindings()
	if err != nil {
		return nil, err
	}
	var bindings hook.BindingSource = static
	if set != nil {
		bindings = hook.Chain{hook.StoreBindings{Actions: st.Actions(), SetID: set.ID}, static}
	}
	return hook.NewRunner(manager, hook.NewExecutor(cfg.Hooks.Timeout), bindings), nil
}

// dashboardURL returns a browsable URL for a listen address.
func dashboardURL(listen string) string {
	if listen == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/api/library"
}

func openBrowser(url string) {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	if err := exec.Command(name, url).Start(); err != nil {
		log.Printf("Failed to open %s: %v", url, err)
	}
}
