package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ayusman/judgy/internal/app"
	"github.com/ayusman/judgy/internal/config"
	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/metrics"
	"github.com/ayusman/judgy/internal/server"
	"github.com/ayusman/judgy/internal/store"
	"github.com/ayusman/judgy/internal/tray"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config.json")
	addr := flag.String("addr", "", "listen address (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	pluginDir := flag.String("plugins", "", "plugin directory (overrides config)")
	noTray := flag.Bool("no-tray", false, "run without the menu bar icon")
	monitor := flag.Bool("monitor", false, "start monitoring immediately")
	initConfig := flag.Bool("init-config", false, "write the effective config to -config and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "judgy: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *pluginDir != "" {
		cfg.Reaction.PluginDir = *pluginDir
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "judgy: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, isTerminal(os.Stderr))

	if *initConfig {
		if err := cfg.Save(*configPath); err != nil {
			logger.Error("main", "%v", err)
			os.Exit(1)
		}
		logger.Info("main", "wrote %s", *configPath)
		return
	}

	if err := run(cfg, !*noTray, *monitor); err != nil {
		logger.Error("main", "%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, withTray, monitor bool) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(filepath.Join(cfg.DataDir, "judgy.db"))
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	a, err := app.New(app.Config{Settings: cfg, Store: st, Metrics: m})
	if err != nil {
		return err
	}
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("main", "plugin discovery failed: %v", err)
	}
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()

	if monitor {
		a.StartMonitoring(true)
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Info("main", "serving static files from %s", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		App:       a,
		Plugins:   a.PluginManager(),
		Metrics:   m.Handler(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, cfg.Server.Addr)
		stop()
	}()

	if withTray {
		runTray(ctx, stop, a, dashboardURL(cfg.Server.Addr))
	} else {
		<-ctx.Done()
	}
	stop()

	logger.Info("main", "shutting down")
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// runTray blocks on the menu bar loop until ctx is done or Quit is clicked.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, url string) {
	t := tray.New()
	t.OnToggle(func() { a.ToggleMonitoring(false) })
	t.OnOpen(func() { openBrowser(url) })
	t.OnQuit(stop)

	go func() {
		notices, cancel := a.Subscribe()
		defer cancel()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case n, ok := <-notices:
				if !ok {
					return
				}
				if n.Type == app.NoticeEvent {
					t.SetLastEvent(fmt.Sprintf("%s at %s", strings.ReplaceAll(n.Event, "_", " "), n.At.Format("15:04")))
				}
			case <-ticker.C:
			}
			st := a.Status()
			t.SetStatus(st.ButtonText, st.Monitoring, st.PickupCount)
		}
	}()

	t.Run()
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	cmd := "xdg-open"
	if runtime.GOOS == "darwin" {
		cmd = "open"
	}
	if err := exec.Command(cmd, url).Start(); err != nil {
		logger.Warn("main", "failed to open browser: %v", err)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
