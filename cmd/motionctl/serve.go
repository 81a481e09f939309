package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rafters-studio/motion-coordinator/internal/config"
	"github.com/rafters-studio/motion-coordinator/internal/control"
	"github.com/rafters-studio/motion-coordinator/internal/engine"
	"github.com/rafters-studio/motion-coordinator/internal/logging"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with its control API and metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.configPath, cmd)
		},
	}
}

// #region serve
func serve(ctx context.Context, configPath string, cmd *cobra.Command) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	engOpts := engine.Options{Logger: logger}
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		engOpts.Registerer = reg
	}
	eng, err := engine.New(cfg, engOpts)
	if err != nil {
		return err
	}
	defer eng.Close()

	lis, err := net.Listen("tcp", cfg.Control.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Control.Address, err)
	}
	gs := grpc.NewServer()
	control.NewServer(eng, logger).Register(gs)

	var metricsSrv *http.Server
	if reg != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", lis.Addr().String()).Msg("control service listening")
		return gs.Serve(lis)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics endpoint listening")
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		gs.GracefulStop()
		if metricsSrv == nil {
			return nil
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(sctx)
	})
	return g.Wait()
}

// #endregion serve
