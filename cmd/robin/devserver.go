package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

func devserverCmd() *cobra.Command {
	var (
		dir  string
		port int
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve a built frontend with cross-origin isolation headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDevserver(ctx, dir, port, newLogger("info"))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "dist", "directory to serve")
	cmd.Flags().IntVar(&port, "port", 5173, "listen port")
	return cmd
}

// crossOriginIsolation sets the headers in-browser runtimes need for
// SharedArrayBuffer.
func crossOriginIsolation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
		next.ServeHTTP(w, r)
	})
}

func devRouter(dir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(crossOriginIsolation)
	r.Handle("/*", http.FileServer(http.Dir(dir)))
	return r
}

func runDevserver(ctx context.Context, dir string, port int, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           devRouter(dir),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("devserver listening", slog.String("dir", dir), slog.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
