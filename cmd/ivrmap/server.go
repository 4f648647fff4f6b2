package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ivrmap/internal/api"
	"github.com/kalambet/ivrmap/internal/config"
	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/metrics"
	"github.com/kalambet/ivrmap/internal/notify"
	"github.com/kalambet/ivrmap/internal/orchestrator"
	"github.com/kalambet/ivrmap/internal/storage"
	"github.com/kalambet/ivrmap/internal/telephony"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ivrmap server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running ivrmap server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ivrmap system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "ivrmap.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "ivrmap version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("ivrmap is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("ivrmap is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the durable job store.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	legStore := ledger.NewStore(cfg.Storage.LedgerPath)

	promRegistry := prometheus.NewRegistry()
	sink := metrics.NewPrometheusSink(promRegistry)

	notifier := notify.NewNotifier(cfg.Webhook.Secret, sink)
	dialer := telephony.NewClient(cfg.Dialer.BaseURL, cfg.Dialer.APIKey)

	orch := orchestrator.New(orchestrator.Deps{
		Registry: orchestrator.NewRegistry(),
		Ledger:   legStore,
		Dialer:   dialer,
		Notifier: notifier,
		Jobs:     store,
		Metrics:  sink,
	}, orchestrator.Options{
		MaxIterations: cfg.Exploration.MaxIterations,
		CallTimeout:   cfg.Exploration.CallTimeout,
		JobTTL:        cfg.Exploration.JobTTL,
	})

	// Compose top-level router: metrics plus the job/ledger API.
	topRouter := chi.NewRouter()
	topRouter.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	topRouter.Mount("/", api.NewAppHandler(api.AppDeps{
		Orchestrator: orch,
		Ledger:       legStore,
		Token:        cfg.Server.APIToken,
	}))

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: topRouter,
	}

	// Build the MCP server on the stdio transport.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Orchestrator: orch,
		Ledger:       legStore,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "ivrmap listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		orch.RunSweeper(gCtx, cfg.Exploration.SweepInterval)
		return nil
	})

	g.Go(func() error {
		if err := stdioSrv.Listen(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("ivrmap is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop ivrmap (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to ivrmap (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Dialer", "%s", cfg.Dialer.BaseURL)

	if running {
		if api, err := newAPIClient(); err == nil {
			if jobsResp, err := api.get("/jobs?limit=100"); err == nil {
				var jobs []struct {
					Status string `json:"status"`
				}
				if decodeJSON(jobsResp, &jobs) == nil {
					active := 0
					for _, j := range jobs {
						if j.Status == "pending" || j.Status == "in-progress" {
							active++
						}
					}
					printStatus("Jobs", "%s total, %d active", countLabel(len(jobs), 100), active)
				}
			}
			if legsResp, err := api.get("/legs"); err == nil {
				var legs []struct {
					Status string `json:"status"`
				}
				if decodeJSON(legsResp, &legs) == nil {
					printStatus("Legs", "%d documented", len(legs))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Ledger", "%s", cfg.Storage.LedgerPath)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
