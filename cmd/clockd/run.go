package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/storacha/w3clock/config"
	"github.com/storacha/w3clock/metrics"
	"github.com/storacha/w3clock/transport/grpcclock"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Start the clock service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "override the gRPC listen address",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "override the log level",
		},
	},
	Action: func(cctx *cli.Context) error {
		cfg, err := config.Load(cctx.String("config"))
		if err != nil {
			return err
		}
		if cctx.IsSet("listen") {
			cfg.Listen = cctx.String("listen")
		}
		if cctx.IsSet("log-level") {
			cfg.LogLevel = cctx.String("log-level")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := logging.SetLogLevel("*", cfg.LogLevel); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg config.Config) error {
	n, err := newNode(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Errorw("closing node", "error", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	srv := grpc.NewServer()
	grpcclock.RegisterClockServer(srv, &grpcclock.Server{Clocks: n.router, Service: n.service})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("clockd listening", "addr", lis.Addr().String(), "service", n.identity.DID(), "datastore", cfg.Datastore.Type)
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.GracefulStop()
		return nil
	})

	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return err
		}
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Infow("metrics listening", "addr", cfg.MetricsListen)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(sctx)
		})
	}

	err = g.Wait()
	log.Info("clockd stopped")
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
