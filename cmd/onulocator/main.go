// Onulocator finds which ZTE OLT of the fleet serves an ONU and reports its
// status and optical levels.
//
// Examples:
//
//	onulocator olt add 10.0.0.1 --name OLT-CENTRO
//	onulocator defaults set --username noc --password secret
//	onulocator status add working Online --color green
//	onulocator locate ZTEGC8F21A04
//	onulocator signal ZTEGC8F21A04 --json
//	onulocator raw-check 10.0.0.1 gpon-onu_1/2/1:5
//	onulocator delete 10.0.0.1 gpon-onu_1/2/1:5
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nanoncore/nano-onulocator/config"
	"github.com/nanoncore/nano-onulocator/locate"
	"github.com/nanoncore/nano-onulocator/logging"
	"github.com/nanoncore/nano-onulocator/metrics"
	"github.com/nanoncore/nano-onulocator/store"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/spf13/cobra"
)

// application holds state shared by every command
type application struct {
	configPath  string
	database    string
	operator    string
	metricsAddr string
	jsonOutput  bool
	verbose     bool

	cfg     *config.Config
	db      *store.DB
	metrics *http.Server
}

var app = &application{}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "onulocator",
	Short:             "Locate ONUs across a fleet of OLTs",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return app.init()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return app.close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Config file (default ./onulocator.yaml or ~/.onulocator/onulocator.yaml)")
	rootCmd.PersistentFlags().StringVar(&app.database, "db", "", "SQLite database (overrides config)")
	rootCmd.PersistentFlags().StringVar(&app.operator, "operator", os.Getenv("USER"), "Operator name recorded in the audit log")
	rootCmd.PersistentFlags().StringVar(&app.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", false, "JSON output")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "onu", Title: "ONU Operations:"},
		&cobra.Group{ID: "inventory", Title: "Inventory:"},
	)

	for _, cmd := range []*cobra.Command{locateCmd, signalCmd, rawCheckCmd, deleteCmd} {
		cmd.GroupID = "onu"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{oltCmd, statusCmd, defaultsCmd, logsCmd} {
		cmd.GroupID = "inventory"
		rootCmd.AddCommand(cmd)
	}
}

func (a *application) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.database != "" {
		cfg.Database = a.database
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	if err := logging.SetLogLevel(level); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	if cfg.LogFormat == "json" {
		logging.SetJSONFormat()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	a.db, err = store.Open(cfg.Database)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}
	return nil
}

func (a *application) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.WithError(err).Warn("metrics server stopped")
		}
	}()
}

func (a *application) close() error {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.metrics.Shutdown(ctx)
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// service builds the locator over the store
func (a *application) service() (*locate.Service, error) {
	extractor, err := a.cfg.Extractor()
	if err != nil {
		return nil, err
	}
	return locate.NewService(a.db, a.db, a.db,
		locate.WithDriverFactory(a.driverFactory),
		locate.WithConcurrency(a.cfg.Concurrency),
		locate.WithTimeouts(a.cfg.Timeouts),
		locate.WithExtractor(extractor),
		locate.WithAuditSink(a.db),
	)
}

// driverFactory applies the configured fleet defaults to targets that do not
// set their own vendor, protocol or port
func (a *application) driverFactory(target types.Target, cred types.Credential, timeouts types.Timeouts) (types.OLTDriver, error) {
	if target.Vendor == "" {
		target.Vendor = types.Vendor(a.cfg.Vendor)
	}
	if target.Protocol == "" {
		target.Protocol = types.Protocol(a.cfg.Protocol)
	}
	if target.Port == 0 && target.Protocol == types.Protocol(a.cfg.Protocol) {
		target.Port = a.cfg.Port
	}
	return locate.DefaultDriverFactory(target, cred, timeouts)
}

// operationContext attaches the operator to the command context
func (a *application) operationContext(cmd *cobra.Command) context.Context {
	return locate.WithOperator(cmd.Context(), a.operator)
}
