// Command serve runs the LPG dispatch simulation: it loads the input data
// files, starts the orchestrator's tick loop, and exposes the control API
// and WebSocket snapshot feed over HTTP (§6.3). Grounded on the teacher's
// cmd/gateway/main.go: load config, wire dependencies, start an
// http.Server in a goroutine, wait on SIGINT/SIGTERM, shut down cleanly.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fleetops/lpgdispatch/internal/config"
	"github.com/fleetops/lpgdispatch/internal/domain"
	"github.com/fleetops/lpgdispatch/internal/environment"
	"github.com/fleetops/lpgdispatch/internal/gateway"
	"github.com/fleetops/lpgdispatch/internal/orchestrator"
	"github.com/fleetops/lpgdispatch/internal/parsing"
	"github.com/fleetops/lpgdispatch/internal/snapshot"
	"github.com/fleetops/lpgdispatch/internal/telemetry"
	"github.com/fleetops/lpgdispatch/pkg/messaging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Println(err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if err == errInterrupted {
		return 130
	}
	return 1
}

var errInterrupted = fmt.Errorf("interrupted")

func newRootCmd() *cobra.Command {
	var (
		configFile string
		port       int
		dataDir    string
		tickMS     int
		redisURL   string
		natsURL    string
		influxURL  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the LPG tanker-fleet dispatch simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if port != 0 {
				v.Set("port", port)
			}
			if dataDir != "" {
				v.Set("data_dir", dataDir)
			}
			if tickMS != 0 {
				v.Set("tick_ms", tickMS)
			}
			if redisURL != "" {
				v.Set("redis_url", redisURL)
			}
			if natsURL != "" {
				v.Set("nats_url", natsURL)
			}
			if influxURL != "" {
				v.Set("influx_url", influxURL)
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to an optional YAML config file")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port for the control API")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory holding ventas/bloqueos/mantpreventivo/averias input files")
	cmd.Flags().IntVar(&tickMS, "tick-ms", 0, "milliseconds of wall-clock time per simulated tick")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "optional Redis URL to mirror snapshots to")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "optional NATS URL for the control bus (in-process bus if unset)")
	cmd.Flags().StringVar(&influxURL, "influx-url", "", "optional InfluxDB URL for telemetry")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	env := environment.New(time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location()))
	env.SetMainDepot(domain.NewMainDepot("PLANT", domain.Position{X: 0, Y: 0}))

	if err := loadData(env, cfg.DataDir); err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	orders, blockages, tasks, catalog, err := parseAll(cfg.DataDir, env.Now())
	if err != nil {
		return fmt.Errorf("parse data: %w", err)
	}

	cache, err := snapshot.NewCache(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("snapshot cache: %w", err)
	}
	defer cache.Close()

	telem := telemetry.NewWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	defer telem.Close()

	var bus messaging.Bus
	if cfg.NATSURL != "" {
		nb, err := messaging.NewNATSBus(messaging.DefaultConfig(cfg.NATSURL))
		if err != nil {
			return fmt.Errorf("nats bus: %w", err)
		}
		bus = nb
	} else {
		bus = messaging.NewLocalBus()
	}
	defer bus.Close()

	orch := orchestrator.New(env, bus, cache, telem, catalog, cfg.TickMS)
	orch.Seed(orders, blockages, tasks)
	orch.SeedSolution()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go orch.Start(runCtx)
	defer orch.Stop()

	gw := gateway.New(gateway.DefaultConfig(), orch, bus)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      gw.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("listening on :%d (data-dir=%s, tick=%dms)", cfg.Port, cfg.DataDir, cfg.TickMS)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-quit:
		log.Println("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return errInterrupted
}

// loadData installs the fixed auxiliary depots and initial fleet (§3);
// the reference topology has two auxiliary tanks and, for each vehicle
// type, UnitCount vehicles starting full at the main plant (0,0).
func loadData(env *environment.Environment, dataDir string) error {
	env.AddAuxDepot(domain.NewAuxDepot("AUX1", domain.Position{X: 40, Y: 10}))
	env.AddAuxDepot(domain.NewAuxDepot("AUX2", domain.Position{X: -30, Y: 25}))

	seq := 1
	for _, code := range []domain.VehicleTypeCode{domain.TypeTA, domain.TypeTB, domain.TypeTC, domain.TypeTD} {
		vt := domain.VehicleTypes[code]
		for unit := 0; unit < vt.UnitCount; unit++ {
			v := &domain.Vehicle{
				ID:       fmt.Sprintf("%s%02d", code, seq),
				Type:     vt,
				Position: domain.Position{X: 0, Y: 0},
				LpgM3:    float64(vt.CapacityM3),
				FuelGal:  domain.FuelTankGallons,
				Status:   domain.StatusAvailable,
			}
			env.AddVehicle(v)
			seq++
		}
	}
	return nil
}

func parseAll(dataDir string, base time.Time) ([]*domain.Order, []*domain.Blockage, []domain.MaintenanceTask, []parsing.CatalogEntry, error) {
	orders, err := parseFileOrEmpty(filepath.Join(dataDir, "ventas"), func(f *os.File) ([]*domain.Order, []parsing.Diagnostic) {
		return parsing.ParseOrders(f, base)
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	blockages, err := parseFileOrEmpty(filepath.Join(dataDir, "bloqueos"), func(f *os.File) ([]*domain.Blockage, []parsing.Diagnostic) {
		return parsing.ParseBlockages(f, base)
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	tasks, err := parseFileOrEmpty(filepath.Join(dataDir, "mantpreventivo"), func(f *os.File) ([]domain.MaintenanceTask, []parsing.Diagnostic) {
		return parsing.ParseMaintenance(f)
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	catalog, err := parseFileOrEmpty(filepath.Join(dataDir, "averias.txt"), func(f *os.File) ([]parsing.CatalogEntry, []parsing.Diagnostic) {
		return parsing.ParseBreakdownCatalog(f)
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return orders, blockages, tasks, catalog, nil
}

// parseFileOrEmpty returns a zero-value result when path doesn't exist: a
// data directory need not carry every input file (§6.1's files are all
// optional inputs to a given simulation run).
func parseFileOrEmpty[T any](path string, parse func(*os.File) (T, []parsing.Diagnostic)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return zero, nil
	}
	if err != nil {
		return zero, err
	}
	defer f.Close()

	result, diags := parse(f)
	for _, d := range diags {
		log.Printf("parse warning (%s): %s", path, d.String())
	}
	return result, nil
}
