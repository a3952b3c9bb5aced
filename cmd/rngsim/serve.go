package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xtding233/contract-rng/internal/rpc"
	"github.com/xtding233/contract-rng/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the simulator over HTTP and gRPC",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Host().Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	httpLis, grpcLis, err := openListeners(cfg.HTTP.Listen, cfg.GRPC.Listen)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if httpLis != nil {
		hs := &http.Server{Handler: server.New(s, log.Logger), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", httpLis.Addr().String()).Msg("http listening")
			if err := hs.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	if grpcLis != nil {
		gs := grpc.NewServer()
		rpc.Register(gs, s, log.Logger)
		g.Go(func() error {
			log.Info().Str("addr", grpcLis.Addr().String()).Msg("grpc listening")
			return gs.Serve(grpcLis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gs.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}

// openListeners binds every configured address before any server starts, so
// a failure leaves nothing running. An empty address yields a nil listener.
func openListeners(httpAddr, grpcAddr string) (httpLis, grpcLis net.Listener, err error) {
	if httpAddr != "" {
		if httpLis, err = net.Listen("tcp", httpAddr); err != nil {
			return nil, nil, fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
	}
	if grpcAddr != "" {
		if grpcLis, err = net.Listen("tcp", grpcAddr); err != nil {
			if httpLis != nil {
				_ = httpLis.Close()
			}
			return nil, nil, fmt.Errorf("listen grpc %s: %w", grpcAddr, err)
		}
	}
	return httpLis, grpcLis, nil
}
