package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentic-research/ngstate/internal/ingest"
	"github.com/agentic-research/ngstate/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides the config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve state building over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(true)
		if err != nil {
			return err
		}
		port := e.cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}

		router := server.NewRouter(server.RouterConfig{
			Engine:       ingest.NewEngine(e.sites, e.inferrer),
			Sites:        e.sites,
			DefaultSite:  e.cfg.Viewer.DefaultSite,
			Uploader:     e.uploader,
			CORSOrigins:  e.cfg.Server.CORSOrigins,
			MaxBodyBytes: e.cfg.Server.MaxBodyBytes(),
			Timeout:      e.cfg.Server.Timeout(),
		})
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: e.cfg.Server.Timeout() + 10*time.Second,
			IdleTimeout:  120 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			log.Printf("Server listening on http://localhost:%d", port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}
		log.Println("Server stopped")
		return nil
	},
}
