package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	_ "net/http/pprof"
	"os"
	"runtime"

	"github.com/humancheck/gatekeeper/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "gatekeeper",
		Usage:   "human verification gate for community moderation",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"GATEKEEPER_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "verification record storage backend: memory, redis, or sql",
			Value:   "sql",
			EnvVars: []string{"GATEKEEPER_STORE"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL: redis://<user>:<pass>@<hostname>:6379/<db>. Also used for counters, flags, and caches when set",
			EnvVars: []string{"GATEKEEPER_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for the sql store (sqlite:// or postgres://)",
			Value:   "sqlite://data/gatekeeper/gatekeeper.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit OpenTelemetry spans for SQL statements",
			EnvVars: []string{"GATEKEEPER_DB_TRACING"},
		},
		&cli.BoolFlag{
			Name:    "optimistic-writes",
			Usage:   "use version-checked record writes, instead of last-write-wins",
			EnvVars: []string{"GATEKEEPER_OPTIMISTIC_WRITES"},
		},
		&cli.StringFlag{
			Name:    "policy-file",
			Usage:   "JSON file with community enforcement settings, re-read for every event. Defaults apply when unset",
			EnvVars: []string{"GATEKEEPER_POLICY_FILE"},
		},
		&cli.StringFlag{
			Name:    "sets-file",
			Usage:   "JSON file with named sets (eg, flagged-domains)",
			EnvVars: []string{"GATEKEEPER_SETS_FILE"},
		},
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "method, hostname, and port of the platform moderation API. Uses an in-memory mock platform when unset",
			EnvVars: []string{"GATEKEEPER_PLATFORM_HOST"},
		},
		&cli.StringFlag{
			Name:    "community",
			Usage:   "community (on the platform) being moderated",
			EnvVars: []string{"GATEKEEPER_COMMUNITY"},
		},
		&cli.StringFlag{
			Name:    "platform-token",
			Usage:   "bearer token for the platform moderation API",
			EnvVars: []string{"GATEKEEPER_PLATFORM_TOKEN"},
		},
		&cli.Float64Flag{
			Name:    "platform-rate-limit",
			Usage:   "max requests per second to the platform API (0 for no limit)",
			Value:   10,
			EnvVars: []string{"GATEKEEPER_PLATFORM_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for ban, override, and failure notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		statusCmd,
		listCmd,
		clearCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the gatekeeper API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3700",
			EnvVars: []string{"GATEKEEPER_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3701",
			EnvVars: []string{"GATEKEEPER_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := cliutil.ConfigLogger(cctx, os.Stdout)
		shutdownOTEL := configOTEL("gatekeeper")
		defer shutdownOTEL()

		eng, err := configEngine(cctx, logger)
		if err != nil {
			return fmt.Errorf("failed to construct engine: %w", err)
		}

		srv := NewServer(Config{
			Logger:        logger,
			Bind:          cctx.String("bind"),
			MetricsListen: cctx.String("metrics-listen"),
		}, eng)

		runtime.SetBlockProfileRate(10)
		runtime.SetMutexProfileFraction(10)

		eg := new(errgroup.Group)
		// prometheus HTTP endpoint: /metrics
		eg.Go(srv.RunMetrics)
		eg.Go(srv.RunAPI)
		return eg.Wait()
	},
}

var statusCmd = &cli.Command{
	Name:      "status",
	Usage:     "print verification status for a user",
	ArgsUsage: "<username>",
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := cliutil.ConfigLogger(cctx, os.Stderr)
		username := cctx.Args().First()
		if username == "" {
			return fmt.Errorf("need to provide username as an argument")
		}
		eng, err := configEngine(cctx, logger)
		if err != nil {
			return err
		}
		view, err := eng.Status(ctx, username)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

var listCmd = &cli.Command{
	Name:  "list",
	Usage: "list usernames with a verification record",
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := cliutil.ConfigLogger(cctx, os.Stderr)
		eng, err := configEngine(cctx, logger)
		if err != nil {
			return err
		}
		usernames, err := eng.ListUsernames(ctx)
		if err != nil {
			return err
		}
		for _, u := range usernames {
			fmt.Println(u)
		}
		return nil
	},
}

var clearCmd = &cli.Command{
	Name:  "clear",
	Usage: "delete every verification record",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "yes",
			Usage: "confirm deleting all records",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := cliutil.ConfigLogger(cctx, os.Stderr)
		if !cctx.Bool("yes") {
			return fmt.Errorf("refusing to delete all records without --yes")
		}
		eng, err := configEngine(cctx, logger)
		if err != nil {
			return err
		}
		count, err := eng.ClearAll(ctx, "")
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d records\n", count)
		return nil
	},
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
