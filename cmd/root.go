package cmd

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	sim "github.com/hospital-sim/hospital-sim/sim"
	"github.com/hospital-sim/hospital-sim/sim/coord"
	"github.com/hospital-sim/hospital-sim/sim/journal"
	"github.com/hospital-sim/hospital-sim/sim/trace"
)

var (
	// CLI flags for the simulation run
	seed           int64  // Seed for all randomized physiology
	horizonMinutes int    // Total simulated time to run (in minutes)
	logLevel       string // Log verbosity level
	logFile        string // Optional rotating log file path
	layoutPath     string // YAML hospital layout; built-in default when empty
	journalPath    string // sqlite trace database; persistence off when empty
	patients       int    // Number of concurrent patient workers
	tickMinutes    int    // Clock step used by the scenario driver
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hospital-sim",
	Short: "Discrete-event simulator for hospital patient flow",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hospital simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Env defaults are optional; flags win over .env values.
		if err := godotenv.Load(); err == nil {
			logrus.Debug("loaded .env defaults")
		}
		if v := os.Getenv("HOSPITAL_SIM_JOURNAL"); v != "" && journalPath == "" {
			journalPath = v
		}

		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		if logFile != "" {
			logrus.SetOutput(&lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    20, // megabytes
				MaxBackups: 3,
				MaxAge:     14, // days
			})
		}

		layout := DefaultLayout()
		if layoutPath != "" {
			layout, err = LoadLayoutConfig(layoutPath)
			if err != nil {
				logrus.Fatalf("unable to read hospital layout: %v", err)
			}
		}
		if err := layout.Validate(); err != nil {
			logrus.Fatalf("invalid hospital layout: %v", err)
		}

		logrus.Infof("Starting simulation: seed=%d, horizon=%dmin, %d patients, %d locations, %d equipment units",
			seed, horizonMinutes, patients, len(layout.Locations), len(layout.Equipment))

		startTime := time.Now()

		rec := trace.NewRecorder()
		world := sim.NewWorld(sim.WorldConfig{Seed: seed}, rec)
		pool := coord.NewPool(world.Clock, rec)
		layout.Apply(world, pool)
		world.OnDayBoundary(pool.ResetDailyCounts)

		RunScenario(world, pool, ScenarioConfig{
			Patients:       patients,
			HorizonMinutes: horizonMinutes,
			TickMinutes:    tickMinutes,
			Seed:           seed,
		})

		world.Metrics.Print()
		os.Stdout.WriteString(pool.SystemStats())
		os.Stdout.WriteString(rec.Summary())
		for _, c := range rec.DetectDoubleBookings() {
			logrus.Warnf("double booking: %s", c)
		}

		if journalPath != "" {
			repo, err := journal.Open(journalPath)
			if err != nil {
				logrus.Fatalf("unable to open journal: %v", err)
			}
			defer repo.Close()
			if err := repo.PersistEvents(rec.Events()); err != nil {
				logrus.Fatalf("unable to persist trace: %v", err)
			}
			if err := repo.PersistSnapshot(world.Clock(), "metrics", world.Metrics); err != nil {
				logrus.Fatalf("unable to persist metrics: %v", err)
			}
			if err := repo.PersistSnapshot(world.Clock(), "pool", pool.Stats()); err != nil {
				logrus.Fatalf("unable to persist pool stats: %v", err)
			}
			logrus.Infof("journal written to %s (%d events)", journalPath, rec.Len())
		}

		logrus.Infof("Simulation complete in %s (wall clock).", time.Since(startTime).Round(time.Millisecond))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for randomized physiology")
	runCmd.Flags().IntVar(&horizonMinutes, "horizon", 480, "Total simulated time (in minutes)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Rotating log file (stderr when empty)")

	runCmd.Flags().StringVar(&layoutPath, "layout", "", "Hospital layout YAML (built-in default when empty)")
	runCmd.Flags().StringVar(&journalPath, "journal", "", "sqlite journal path (no persistence when empty)")

	runCmd.Flags().IntVar(&patients, "patients", 10, "Number of concurrent patient workers")
	runCmd.Flags().IntVar(&tickMinutes, "tick", 10, "Clock step per driver iteration (in minutes)")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
