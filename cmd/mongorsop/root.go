package mongorsop

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mongorsop/internal/actuate"
	"mongorsop/internal/bootstrap"
	"mongorsop/internal/config"
	"mongorsop/internal/constants"
	"mongorsop/internal/exit"
	"mongorsop/internal/logger"
	"mongorsop/internal/metrics"
	"mongorsop/internal/mongo"
	"mongorsop/internal/retry"
	"mongorsop/internal/supervisor"
	"mongorsop/internal/swarm"
)

var (
	debugFlag         bool
	cycleIntervalFlag time.Duration

	rootCmd = &cobra.Command{
		Use:     filepath.Base(os.Args[0]),
		Short:   "Reconcile a MongoDB replica set against a Docker Swarm service",
		Version: "0.1.0",
		Run:     run,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable verbose logging (overrides DEBUG)")
	rootCmd.Flags().DurationVar(&cycleIntervalFlag, "cycle-interval", 0, "Override CYCLE_INTERVAL_SEC")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	exit.OnErrorWithMessage(err, "invalid configuration")

	if debugFlag {
		cfg.Debug = true
	}
	if cycleIntervalFlag > 0 {
		cfg.CycleInterval = cycleIntervalFlag
	}

	level := logger.INFO
	if cfg.Debug {
		level = logger.DEBUG
	}
	exit.OnErrorWithMessage(logger.EnsureLogger(level), "failed to initialize logger")
	defer logger.Close()

	logger.Info("starting mongorsop",
		logger.F("service", cfg.MongoServiceName),
		logger.F("replicaSet", cfg.ReplicaSetName),
		logger.F("cycleInterval", cfg.CycleInterval))

	observer, err := swarm.New(cfg.MongoServiceName, cfg.OverlayNetworkName, cfg.MongoPort)
	exit.OnErrorWithMessage(err, "failed to build topology observer")
	defer observer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := swarm.WaitForServiceReady(ctx, observer, 2*time.Minute, 2*time.Second); err != nil {
		logger.Warning("service not observably ready yet, starting cycles anyway", logger.F("error", err))
	}

	root := mongo.Credentials{Username: cfg.MongoRootUsername, Password: cfg.MongoRootPassword}
	adminPolicy := retry.New(constants.AdminCallBackoffBase, constants.AdminCallBackoffCap, 2, constants.AdminCallMaxAttempts)
	actuator := actuate.New(root, cfg.ElectionTimeout, constants.ReconfigureRetries, adminPolicy)

	bootstrapper := bootstrap.New(bootstrap.Spec{
		RootUsername:       cfg.MongoRootUsername,
		RootPassword:       cfg.MongoRootPassword,
		AppDatabase:        cfg.InitialDatabase,
		AppUsername:        cfg.InitialUser,
		AppPassword:        cfg.InitialPassword,
		SentinelCollection: constants.InitialDatabaseSentinelCollection,
	})

	sup := supervisor.New(observer, actuator, bootstrapper, cfg.ReplicaSetName, cfg.CycleInterval, cfg.ScaleDownHysteresis)

	metricsServer := metrics.NewServer(":9090")
	metricsServer.Start(ctx)

	sup.Run(ctx)
	logger.Info("mongorsop stopped cleanly")
}
