// Command sipwardd boots the proxy core: it validates the runtime
// configuration, installs it as the live environment and runs the
// transaction dispatcher until terminated.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/sipward/sipward/config"
	"github.com/sipward/sipward/log"
	"github.com/sipward/sipward/transact"
)

func main() {
	app := cli.NewApp()
	app.Name = "sipwardd"
	app.Usage = "SIP proxy/registrar core daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the configuration `FILE`",
		},
		cli.StringFlag{
			Name:  "app, a",
			Usage: "application profile (incomingproxy, outgoingproxy, pstnproxy, appserver)",
			Value: string(config.AppIncomingProxy),
		},
		cli.BoolFlag{
			Name:  "develop",
			Usage: "verbose development logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	if cliCtx.Bool("develop") {
		log.SetDefault(log.Develop())
	} else {
		log.SetDefault(log.Console())
	}
	logger := log.Default()

	app := config.App(cliCtx.String("app"))
	env := config.NewLiveEnv()
	validator := config.NewValidator(&config.ValidatorOptions{
		Env:    env,
		Logger: logger,
	})

	snapshot, err := loadSnapshot(cliCtx.String("config"), app)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	// boot is a hard reload by definition
	normalized, err := validator.Check(snapshot, app, config.ReloadModeHard)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	env.Install(normalized)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	check := validator.StartBackgroundCheck(ctx, normalized, app)
	defer check.Wait(context.Background()) //nolint:errcheck

	dispatcher := transact.NewDispatcher(&transact.DispatcherOptions{
		Index: transact.NewIndex(&transact.IndexOptions{
			Metrics: transact.NewMetrics(nil),
			Logger:  logger,
		}),
		Logger: logger,
	})
	if err := dispatcher.Start(ctx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "sipwardd running",
		slog.String("app", string(app)),
		slog.Int("parameters", env.Len()),
	)

	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dispatcher.Close(closeCtx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	logger.LogAttrs(context.Background(), slog.LevelInfo, "sipwardd stopped")
	return nil
}

// loadSnapshot overlays the configuration file, when given, on the
// schema defaults of the application profile.
func loadSnapshot(path string, app config.App) (config.Snapshot, error) {
	defaults := config.DefaultsSnapshot(config.DefaultRegistry().SchemaFor(app))
	if path == "" {
		return defaults, nil
	}

	fileSnapshot, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return config.MergeSnapshots(defaults, fileSnapshot), nil
}
