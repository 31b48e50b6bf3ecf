package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"recallwatch/internal/api"
	"recallwatch/internal/auth"
	"recallwatch/internal/config"
	"recallwatch/internal/events"
	"recallwatch/internal/metrics"
	"recallwatch/internal/rawlayer"
)

func newServeCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ccmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the raw layer read API, live run events and the ingest trigger.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd, stderr)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			st, err := openStore(ctx, cfg, log, m)
			if err != nil {
				return err
			}
			defer st.Close()

			warnDefaultSecret(cfg, log)
			hub := events.NewHub(log)
			tokens := auth.TokenService{Secret: []byte(cfg.Auth.JWTSecret), Issuer: cfg.Auth.JWTIssuer, Duration: cfg.Auth.JWTTTL}
			repo := rawlayer.NewRepo(st.DB, st.Dialect)
			srv := api.NewServer(repo, hub, tokens, m, newPipeline(cfg, st, log, m, hub), runOptions(cfg), log)
			if cfg.Auth.OperatorPasswordHash != "" {
				srv.Login = auth.NewHandler(cfg.Auth.Operator, cfg.Auth.OperatorPasswordHash, tokens)
			}

			gin.SetMode(gin.ReleaseMode)
			httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: srv.Router(), ReadHeaderTimeout: 10 * time.Second}

			grpcSrv, hs := api.NewGRPCServer()
			var grpcLis net.Listener
			if cfg.Server.GRPCAddr != "" {
				if grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr); err != nil {
					return fmt.Errorf("grpc listen: %w", err)
				}
			}

			errCh := make(chan error, 2)
			var wg sync.WaitGroup

			wg.Add(1)
			go func() {
				defer wg.Done()
				log.WithField("addr", cfg.Server.Addr).Info("http api listening")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			if grpcLis != nil {
				lis := grpcLis
				go api.WatchReadiness(ctx, hs, repo, 15*time.Second)
				wg.Add(1)
				go func() {
					defer wg.Done()
					log.WithField("addr", cfg.Server.GRPCAddr).Info("grpc health listening")
					if err := grpcSrv.Serve(lis); err != nil {
						errCh <- err
					}
				}()
			}

			select {
			case <-ctx.Done():
				log.Info("shutdown signal received")
			case err := <-errCh:
				log.WithError(err).Error("server error")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("http shutdown")
			}
			grpcSrv.GracefulStop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("active run did not stop in time")
			}
			wg.Wait()
			log.Info("servers stopped")
			return nil
		},
	}
	flags := ccmd.Flags()
	config.RegisterIngestFlags(flags)
	config.RegisterStoreFlags(flags)
	config.RegisterServerFlags(flags)
	config.RegisterLogFlags(flags)
	return ccmd
}
