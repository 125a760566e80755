package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/api"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mcp"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/rpc"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/sweep"
)

// #region serve
func serveCmd() *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and gRPC CubeService, and run the pending-cube sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signalContext()
			defer stop()
			return serve(ctx, rt, !noSweep)
		},
	}

	cmd.Flags().StringVar(&opts.CLIHTTPAddr, "http", "", "HTTP listen address (default :8000)")
	cmd.Flags().StringVar(&opts.CLIGRPCAddr, "grpc", "", "gRPC listen address (default localhost:50051)")
	cmd.Flags().StringVar(&opts.CLISchedule, "sweep", "", "sweep schedule, cron syntax or @every (default @every 1m)")
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "disable the pending-cube sweep")
	return cmd
}

func serve(ctx context.Context, rt *runtime, sweepAllowed bool) error {
	httpAddr := rt.cfg.HTTPAddr.Value
	grpcAddr := rt.cfg.GRPCAddr.Value

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", grpcAddr, err)
	}
	grpcServer := rpc.NewGRPCServer(rt.orch, rt.logger)

	enabled, schedule := rt.cfg.Sweep()
	if enabled && sweepAllowed {
		sw, err := sweep.New(rt.orch, schedule, rt.logger)
		if err != nil {
			lis.Close()
			return err
		}
		if err := sw.Start(ctx); err != nil {
			lis.Close()
			return err
		}
		defer sw.Stop()
		rt.logger.Info("sweep scheduled", zap.Time("next", sw.Next()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.New(rt.orch, rt.logger).Run(gctx, httpAddr)
	})
	g.Go(func() error {
		rt.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()), zap.String("service", rpc.ServiceName))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	err = g.Wait()
	rt.logger.Info("controller stopped")
	return err
}
// #endregion serve

// #region mcp
func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			s := mcp.NewServer(mcp.ServerConfig{Pipeline: rt.orch, Logger: rt.logger, Version: version})
			return mcp.ServeStdio(s)
		},
	}
}
// #endregion mcp
