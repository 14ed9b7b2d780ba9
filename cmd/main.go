package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/e14n/pump2status/api"
	"github.com/e14n/pump2status/worker"
)

var (
	version      = "unknown"
	buildMachine = "unknown"
	buildTime    = "unknown"
	goVersion    = "unknown"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PUMP2STATUS")
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "pump2status",
		Short:         "Bridge pump.io accounts to StatusNet and Twitter",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default "+defaultConfigPath+")")
	flags.String("log_level", "", "debug, info, warn or error")
	flags.String("log_format", "", "text or json")
	for _, name := range []string{"config", "log_level", "log_format"} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newServeCmd(v),
		newUpdateCmd(v),
		newForwardCmd(v),
		newAddHostCmd(v),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and builds the shared components.
func setup(v *viper.Viper) (*app, error) {
	config, err := loadConfig(configPaths(v))
	if err != nil {
		return nil, err
	}
	applyOverrides(v, &config)
	if err := config.validate(); err != nil {
		return nil, err
	}

	appLogger := newLogger(config.Server.LogLevel, config.Server.LogFormat)
	slog.SetDefault(appLogger)

	return newApp(config, appLogger)
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web API, the updater and the forwarder",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(v)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().String("port", "", "listen port (default 8000)")
	v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(ctx context.Context, a *app) error {
	config := a.config
	a.logger.Info(fmt.Sprintf("pump2status %s starting...", version))

	e := echo.New()
	e.HidePort = true
	e.HideBanner = true

	if config.Server.EnableTrace {
		cleanup, err := setupTraceProvider(config.Server.TraceEndpoint, config.Site.Hostname+"/pump2status", version)
		if err != nil {
			return err
		}
		defer cleanup()

		skipper := otelecho.WithSkipper(
			func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/health"
			},
		)
		e.Use(otelecho.Middleware(config.Site.Hostname, skipper))
	}

	e.Use(echoprometheus.NewMiddleware("pump2status"))
	e.Use(middleware.Recover())

	apiService := api.NewService(a.store, a.bridge, a.networks, a.pump, a.tokens, config.Site)
	api.NewHandler(apiService).Register(e)

	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}

	e.GET("/health", func(c echo.Context) (err error) {
		ctx := c.Request().Context()

		err = sqlDB.PingContext(ctx)
		if err != nil {
			return c.String(http.StatusInternalServerError, "db error")
		}

		err = a.rdb.Ping(ctx).Err()
		if err != nil {
			return c.String(http.StatusInternalServerError, "redis error")
		}

		return c.String(http.StatusOK, "ok")
	})

	e.GET("/metrics", echoprometheus.NewHandler())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(a.store, a.bridge, config.Worker, a.logger, worker.NewMetrics(prometheus.DefaultRegisterer))
	w.Run(ctx)
	defer w.Stop()

	errc := make(chan error, 1)
	go func() {
		errc <- e.Start(":" + config.Server.Port)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pump2status %s (built %s on %s with %s)\n", version, buildTime, buildMachine, goVersion)
		},
	}
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("pump2status failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
