package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	dir  string // directory of generated reports to serve
	addr string // listen address
}

// serveCommand creates the serve command for sharing generated reports
// over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		dir:  ".",
		addr: "localhost:8080",
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory of generated reports over HTTP",
		Long: `Serve a directory of generated reports over HTTP.

The serve command exposes a directory listing so generated workbooks can
be downloaded from a browser on the local network. It is meant for quick
sharing, not production hosting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", opts.dir, "directory to serve")
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")

	return cmd
}

// runServe starts the file server and blocks until the context is
// cancelled.
func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	logger := loggerFromContext(ctx)

	info, err := os.Stat(opts.dir)
	if err != nil {
		return fmt.Errorf("serve directory %s: %w", opts.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("serve directory %s: not a directory", opts.dir)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))
	r.Handle("/*", http.FileServer(http.Dir(opts.dir)))

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	printInfo("Serving %s", opts.dir)
	printLink("http://" + opts.addr)
	logger.Debugf("listening on %s", opts.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// requestLogger logs each request at debug level with method, path, and
// duration.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			logger.Debugf("%s %s (%s)", req.Method, req.URL.Path, time.Since(start).Round(time.Millisecond))
		})
	}
}
