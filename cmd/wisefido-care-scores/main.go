package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logpkg "wisefido-care-scores/common/logger"
	"wisefido-care-scores/internal/config"
	"wisefido-care-scores/internal/service"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const serviceName = "wisefido-care-scores"

func main() {
	root := &cli.Command{
		Name:  serviceName,
		Usage: "Care risk and documentation compliance scores for care-home residents",
		Commands: []*cli.Command{
			calculateCommand(),
			backfillCommand(),
			exportCommand(),
			migrateCommand(),
			serveCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dbFlags 覆盖 DB_* 环境变量
func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "database password override"},
		&cli.StringFlag{Name: "user", Usage: "database user override"},
		&cli.StringFlag{Name: "dbname", Usage: "database name override"},
		&cli.StringFlag{Name: "host", Usage: "database host override"},
		&cli.IntFlag{Name: "port", Usage: "database port override"},
		&cli.StringFlag{Name: "sslmode", Usage: "database SSL mode override"},
	}
}

func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "periods", Usage: "comma-separated lookback periods in days (default: SCORING_PERIODS or 7,14,30)"},
		&cli.StringFlag{Name: "client", Usage: "optional client name filter"},
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// setup 加载配置、应用命令行覆盖并创建日志
func setup(cmd *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyOverrides(cfg, cmd); err != nil {
		return nil, nil, err
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// withService 创建服务，执行 fn 后释放连接
func withService(ctx context.Context, cmd *cli.Command, fn func(*config.Config, *service.ScoringService) error) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	svc, err := service.NewScoringService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()

	return fn(cfg, svc)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database schema migrations",
		Flags: dbFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withService(ctx, cmd, func(_ *config.Config, svc *service.ScoringService) error {
				return svc.Migrate(ctx)
			})
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the daily scheduled calculation",
		Flags: withFlags(dbFlags(), []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (default: HTTP_ADDR or :8090)"},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()
			if addr := cmd.String("addr"); addr != "" {
				cfg.HTTP.Addr = addr
			}

			log.Info("Starting wisefido-care-scores service")

			svc, err := service.NewScoringService(ctx, cfg, log)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				errChan <- svc.Start(ctx)
			}()

			select {
			case sig := <-sigChan:
				log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
			case err = <-errChan:
				if err != nil {
					log.Error("Service error", zap.Error(err))
				}
			}
			cancel()

			if stopErr := svc.Stop(ctx); stopErr != nil {
				log.Error("Error stopping service", zap.Error(stopErr))
			}
			log.Info("Service stopped")
			return err
		},
	}
}
