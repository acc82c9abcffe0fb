package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"annotate/internal/apihandlers"
)

var (
	serveAddr string // Listen address
	servePort string // Listen port
)

// shutdownTimeout bounds the graceful stop, pending saves included.
const shutdownTimeout = 15 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review UI",
	Long: `Starts an HTTP server with the browser review UI. Edits made in the UI
are written to the backend after a quiet period (review.save_delay); pending
edits are flushed on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		cfg := appInstance.Config
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		if cfg.Log.Level != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		router, err := apihandlers.NewRouter(appInstance)
		if err != nil {
			return err
		}

		listenAddr := net.JoinHostPort(cfg.Server.Addr, cfg.Server.Port)
		srv := &http.Server{
			Addr:              listenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			log.Infof("Serving review UI on http://%s (backend %s)", listenAddr, cfg.Backend.URL)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to run UI server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("Shutting down, flushing pending edits...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown incomplete")
		}
		if err := appInstance.Close(shutdownCtx); err != nil {
			return fmt.Errorf("failed to flush pending edits: %w", err)
		}
		log.Info("Review UI stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Add flags for server configuration
	serveCmd.Flags().StringVar(&serveAddr, "addr", "localhost", "Address to listen on (e.g., '0.0.0.0' for all interfaces)")
	serveCmd.Flags().StringVar(&servePort, "port", "8081", "Port to listen on")
}
