package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alanwang67/userinfo/client"
	"github.com/alanwang67/userinfo/codec"
	"github.com/alanwang67/userinfo/config"
	"github.com/alanwang67/userinfo/gateway"
	"github.com/alanwang67/userinfo/protocol"
	"github.com/alanwang67/userinfo/server"
	"github.com/alanwang67/userinfo/workload"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "userinfo"
	app.Usage = "serve and query the GetUserInfo call"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "JSON or YAML config file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "debug, info, warn or error",
		},
	}
	app.Before = func(c *cli.Context) error {
		level, err := log.ParseLevel(c.String("log-level"))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   "server",
			Usage:  "run the server until interrupted",
			Action: serverCommand,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "address", Usage: "listen address (default \":50051\")"},
				cli.IntFlag{Name: "workers", Usage: "worker pool size (default 10)"},
				cli.StringFlag{Name: "codec", Usage: "gob, json or proto (default proto)"},
			},
		},
		{
			Name:      "client",
			Usage:     "call GetUserInfo once and print the reply",
			ArgsUsage: "[name]",
			Action:    clientCommand,
			Flags:     clientFlags(),
		},
		{
			Name:   "gateway",
			Usage:  "serve GetUserInfo as JSON over HTTP",
			Action: gatewayCommand,
			Flags: append(clientFlags(),
				cli.StringFlag{Name: "listen", Usage: "HTTP listen address (default \":8080\")"},
			),
		},
		{
			Name:   "bench",
			Usage:  "run a generated workload against the server",
			Action: benchCommand,
			Flags: append(clientFlags(),
				cli.IntFlag{Name: "calls", Usage: "number of calls (default 1000)"},
				cli.IntFlag{Name: "concurrency", Usage: "calls in flight (default 16)"},
				cli.StringFlag{Name: "csv", Usage: "write per-call metrics to this CSV file"},
				cli.StringFlag{Name: "plot", Usage: "write a latency plot to this image file"},
			),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func clientFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "address", Usage: "server address (default \"localhost:50051\")"},
		cli.StringFlag{Name: "codec", Usage: "gob, json or proto (default proto)"},
		cli.DurationFlag{Name: "timeout", Usage: "per-call timeout, 0 disables it (default 10s)"},
	}
}

// loadConfig reads the global --config file, or returns the defaults.
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.GlobalString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyClientFlags(c *cli.Context, cfg *config.Client) error {
	if c.IsSet("address") {
		cfg.Address = c.String("address")
	}
	if c.IsSet("codec") {
		name, err := codec.Parse(c.String("codec"))
		if err != nil {
			return err
		}
		cfg.Codec = name
	}
	if c.IsSet("timeout") {
		cfg.CallTimeout = config.Duration{Duration: c.Duration("timeout")}
	}
	return nil
}

func serverCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("address") {
		cfg.Server.Address = c.String("address")
	}
	if c.IsSet("workers") {
		cfg.Server.Workers = c.Int("workers")
	}
	if c.IsSet("codec") {
		if cfg.Server.Codec, err = codec.Parse(c.String("codec")); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.New(cfg.Server)
	if err != nil {
		return err
	}
	log.Infof("server %d serving %s on %s", s.Id, protocol.ServiceName, cfg.Server.Address)
	return s.Start(ctx)
}

func clientCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyClientFlags(c, &cfg.Client); err != nil {
		return err
	}

	name := cfg.Client.Name
	if c.NArg() > 0 {
		name = c.Args().First()
	}

	return client.New(cfg.Client).Start(context.Background(), name)
}

func gatewayCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyClientFlags(c, &cfg.Client); err != nil {
		return err
	}
	if c.IsSet("listen") {
		cfg.Gateway.Address = c.String("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := client.New(cfg.Client)
	defer users.Close()

	srv := &http.Server{
		Addr:              cfg.Gateway.Address,
		Handler:           gateway.New(users),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("gateway listening on %s, forwarding to %s", cfg.Gateway.Address, cfg.Client.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func benchCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyClientFlags(c, &cfg.Client); err != nil {
		return err
	}
	if c.IsSet("calls") {
		cfg.Bench.Calls = c.Int("calls")
	}
	if c.IsSet("concurrency") {
		cfg.Bench.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("csv") {
		cfg.Bench.CSV = c.String("csv")
	}
	if c.IsSet("plot") {
		cfg.Bench.Plot = c.String("plot")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := client.New(cfg.Client)
	defer users.Close()
	if err := users.Connect(ctx); err != nil {
		return err
	}

	generator := workload.NewWorkloadGenerator()
	generator.OperationCount = cfg.Bench.Calls
	generator.ZipfianS = cfg.Bench.ZipfS
	generator.ZipfianV = cfg.Bench.ZipfV

	metrics, summary, err := workload.Run(ctx, users, generator.Generate(), cfg.Bench.Concurrency)
	log.Infof("completed workload. Total Ops: %d, Failed: %d, Avg Latency: %v, Max Latency: %v, Throughput: %.1f ops/s",
		summary.Total, summary.Failed, summary.MeanLatency, summary.MaxLatency, summary.Throughput())
	if err != nil {
		return err
	}

	if cfg.Bench.CSV != "" {
		if err := workload.SaveCSV(metrics, cfg.Bench.CSV); err != nil {
			return err
		}
		log.Infof("metrics saved to %s", cfg.Bench.CSV)
	}
	if cfg.Bench.Plot != "" {
		if err := workload.PlotLatency(metrics, cfg.Bench.Plot); err != nil {
			return err
		}
		log.Infof("latency plot saved to %s", cfg.Bench.Plot)
	}
	if summary.Failed > 0 {
		return cli.NewExitError("some calls failed", 1)
	}
	return nil
}
