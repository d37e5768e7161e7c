package cmd

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/inconshreveable/log15"
	metricsserver "github.com/puppetlabs/leg/instrumentation/metrics/server"
	"github.com/puppetlabs/leg/mainutil"
	"github.com/puppetlabs/relay-notify/pkg/server"
	"github.com/puppetlabs/relay-notify/pkg/util/lifecycleutil"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "serve",
		Short:                 "Accept notices over HTTP and report them until signalled",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := log.New("module", "cmd/serve")

			mets, err := cfg.Metrics()
			if err != nil {
				return fmt.Errorf("serve: failed to set up metrics: %+v", err)
			}

			d, err := cfg.Dispatcher(log.New("module", "notify"), mets)
			if err != nil {
				return err
			}

			mode, _ := cfg.Mode()
			logger.Info("reporting configured", "mode", mode, "environment", cfg.Environment, "limit", cfg.OverloadThreshold)

			var servers []mainutil.CancelableFunc

			if mets != nil {
				servers = append(servers, func(ctx context.Context) error {
					logger.Info("listening for metrics connections", "addr", cfg.MetricsServerBindAddr)
					return metricsserver.New(mets, metricsserver.Options{
						BindAddr: cfg.MetricsServerBindAddr,
					}).Run(ctx)
				})
			}

			servers = append(servers, func(ctx context.Context) error {
				s := &http.Server{
					Handler: server.NewHandler(d, server.WithLogger(log.New("module", "server"))),
					Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ListenPort),
				}

				listenOpts := []lifecycleutil.ListenWaitHTTPOption{
					lifecycleutil.ListenWaitWithHTTPShutdownTimeout(cfg.ShutdownTimeout),
					lifecycleutil.ListenWaitWithHTTPCloserRequireContext(d.Close),
				}
				if cfg.TLSKeyFile != "" {
					logger.Info("listening with TLS")
					listenOpts = append(listenOpts, lifecycleutil.ListenWaitWithTLS(cfg.TLSCertificateFile, cfg.TLSKeyFile))
				}

				logger.Info("listening for notice connections", "addr", s.Addr)
				return lifecycleutil.ListenWaitHTTP(ctx, s, listenOpts...)
			})

			if code := mainutil.TrapAndWait(cmd.Context(), servers...); code != 0 {
				return fmt.Errorf("serve: exited with status %d", code)
			}

			return nil
		},
	}

	return cmd
}
