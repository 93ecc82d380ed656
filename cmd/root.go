// Package cmd wires the logpulse binary together: cobra flags bound
// through viper, the internal/logger structured logger, and the
// Tailer/Cache/Dispatcher/Scheduler pipeline from internal/logpulse. The
// single-root-command layout and viper.BindPFlag pattern are adapted from
// the teacher's cmd/scheduler.go.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marregui/logpulse/internal/clf"
	"github.com/marregui/logpulse/internal/clf/stats"
	"github.com/marregui/logpulse/internal/logger"
	"github.com/marregui/logpulse/internal/logpulse"
)

const (
	defaultFilePath              = "/tmp/access.log"
	defaultGeneralStatsPeriod    = stats.DefaultGeneralStatsPeriodSecs
	defaultTrafficGaugePeriod    = stats.DefaultTrafficGaugePeriodSecs
	defaultTrafficGaugeThreshold = stats.DefaultTrafficGaugeThresholdRPS
)

var rootCmd = &cobra.Command{
	Use:   "logpulse",
	Short: "Tails a Common Log Format access log and reports rolling traffic statistics",
	Long: `logpulse tails a Common Log Format access log file, maintains a
sliding window of recently observed requests, and periodically reports
general traffic statistics and high-traffic alerts to stdout.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("file", "f", defaultFilePath, "path of the access log file to tail")
	flags.Int("general-stats-period", defaultGeneralStatsPeriod, "general traffic statistics period, in seconds")
	flags.Int("traffic-gauge-period", defaultTrafficGaugePeriod, "high traffic gauge period, in seconds")
	flags.Float64("traffic-gauge-threshold", defaultTrafficGaugeThreshold, "average requests/sec threshold that triggers a high traffic alert")
	flags.String("log-file", "", "optional rotating log file path (console-only logging when empty)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	for _, name := range []string{"file", "general-stats-period", "traffic-gauge-period", "traffic-gauge-threshold", "log-file", "log-level"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("logpulse: failed to bind flag %q: %v", name, err))
		}
	}
}

// Execute runs the root command. It is the sole entry point main.go calls.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, _ []string) error {
	filePath := viper.GetString("file")
	generalStatsPeriod := viper.GetInt("general-stats-period")
	trafficGaugePeriod := viper.GetInt("traffic-gauge-period")
	trafficGaugeThreshold := viper.GetFloat64("traffic-gauge-threshold")
	logFile := viper.GetString("log-file")
	logLevel := viper.GetString("log-level")

	if filePath == "" {
		return fmt.Errorf("logpulse: --file must not be empty")
	}
	if generalStatsPeriod <= 0 || trafficGaugePeriod <= 0 || trafficGaugeThreshold <= 0 {
		return fmt.Errorf("logpulse: --general-stats-period, --traffic-gauge-period and --traffic-gauge-threshold must be positive")
	}

	log := logger.NewLogger(logger.Config{Level: logger.ParseLevel(logLevel), FilePath: logFile})

	tailer := logpulse.NewTailer(filePath, clf.Parse)
	cache := logpulse.NewCache[clf.Entry]()
	dispatcher := logpulse.NewDispatcher(cache, log.Slog())
	scheduler := logpulse.NewScheduler(tailer, cache, dispatcher, logpulse.Options{}, log.Slog())

	if err := scheduler.Register(stats.NewGeneralStats(generalStatsPeriod, os.Stdout)); err != nil {
		return fmt.Errorf("logpulse: registering general stats: %w", err)
	}
	if err := scheduler.Register(stats.NewHighTrafficGauge(os.Stdout, trafficGaugePeriod, trafficGaugeThreshold)); err != nil {
		return fmt.Errorf("logpulse: registering traffic gauge: %w", err)
	}

	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("logpulse: starting scheduler: %w", err)
	}
	log.Info("scheduler started", "file", filePath, "general_stats_period_secs", generalStatsPeriod,
		"traffic_gauge_period_secs", trafficGaugePeriod, "traffic_gauge_threshold_rps", trafficGaugeThreshold)

	stopped := make(chan os.Signal, 1)
	signal.Notify(stopped, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-stopped
	log.Info("signal received, stopping", "signal", sig.String())

	if err := scheduler.Stop(); err != nil {
		log.Error("scheduler stop failed", slog.String("error", err.Error()))
		return err
	}
	scheduler.JoinTasks(5 * time.Second)
	log.Info("scheduler stopped cleanly")
	return nil
}
