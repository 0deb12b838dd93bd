package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"codeberg.org/znoxx/sleepynas/internal/errors"
	"codeberg.org/znoxx/sleepynas/internal/logger"
	"codeberg.org/znoxx/sleepynas/internal/sidecar"
	"codeberg.org/znoxx/sleepynas/internal/wol"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	config    string
	address   string
	port      int
	broadcast string
	verbose   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.ErrorWithCode(err).Msg("sleepy-sidecar stopped")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:           "sleepy-sidecar",
		Short:         "Track sleep/wake status of sleepy-nas hosts and wake them on demand",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
	}

	bindFlags(cmd.Flags(), &o)

	return cmd
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.config, "config", "sidecar.conf", "Server registry file (CSV: id,mac,timeout)")
	fs.StringVar(&o.address, "address", "0.0.0.0", "Listen address")
	fs.IntVar(&o.port, "port", 10000, "Listen port")
	fs.StringVar(&o.broadcast, "broadcast", wol.DefaultBroadcast, "Wake-on-LAN broadcast address")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
}

func run(ctx context.Context, o options) error {
	logger.Init(o.verbose, logger.IsService())

	servers, err := sidecar.LoadFile(o.config)
	if err != nil {
		return err
	}

	registry, err := sidecar.NewRegistry(servers, wol.NewSender(o.broadcast))
	if err != nil {
		return err
	}
	logger.Info().Int("servers", len(servers)).Str("config", o.config).Msg("Registry loaded")

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	addr := net.JoinHostPort(o.address, strconv.Itoa(o.port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           sidecar.NewRouter(registry),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", addr).Msg("Sidecar listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return errors.New().Wrap(errors.ErrInitFailed, err).WithData(addr)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down sidecar")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Sidecar forced to shut down")
		return err
	}

	return nil
}
