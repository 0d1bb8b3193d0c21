package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/codec"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/etcd"
	"github.com/thoreinstein/strata/pkg/store/httpstore"
)

var (
	serveAddr     string
	servePoll     time.Duration
	serveReadOnly bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "listen address")
	serveCmd.Flags().DurationVar(&servePoll, "poll", 0,
		"reload HTTP stores at this interval (0 disables polling)")
	serveCmd.Flags().BoolVar(&serveReadOnly, "readonly", false,
		"answer PUT, POST and DELETE with 405")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the merged configuration over HTTP",
	Long: `Serve the store stack over HTTP. The request path is the key, one
segment per path element:

  GET    /database/host   read the merged value (404 when absent)
  PUT    /database/host   set the value from the request body
  POST   /database        deep-merge the request body
  DELETE /database/host   clear the key

Bodies use the --output format. etcd stores are watched and HTTP stores
polled (with --poll) while the server runs, so reads see remote changes.`,
	Example: `  strata serve --addr :8080
  curl localhost:8080/database/host`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, err := outputFormat()
	if err != nil {
		return err
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ln, err := net.Listen("tcp", serveAddr)
	if err != nil {
		return errors.NewSystemError(errors.Wrap(err, "listening"), "Choose another address with --addr")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %d stores on http://%s\n", len(a.Stores()), ln.Addr())
	return serveOn(ctx, a, ln, format)
}

// serveOn serves a's aggregate on ln until ctx is canceled.
func serveOn(ctx context.Context, a *app, ln net.Listener, format codec.Format) error {
	logger := logging.FromContext(ctx)

	var handler http.Handler = httpstore.NewHandler(a.Aggregate(),
		httpstore.WithHandlerLogger(logger),
		httpstore.WithHandlerFormat(format),
	)
	if serveReadOnly {
		handler = readOnly(handler)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var watchers sync.WaitGroup
	startWatchers(ctx, a, servePoll, &watchers, logger)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("serving configuration", "addr", ln.Addr().String())

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		err = srv.Shutdown(shutdownCtx)
		stop()
	}

	cancel()
	watchers.Wait()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving")
	}
	return nil
}

// startWatchers follows etcd stores and polls HTTP stores until ctx ends.
func startWatchers(ctx context.Context, a *app, poll time.Duration, wg *sync.WaitGroup, logger *slog.Logger) {
	for _, e := range a.Stores() {
		if s, ok := store.As[*etcd.Store](e.Store); ok {
			wg.Go(func() {
				if err := s.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("etcd watch stopped", "store", e.Name, "error", err)
				}
			})
			continue
		}
		if s, ok := store.As[*httpstore.Store](e.Store); ok && poll > 0 {
			wg.Go(func() { s.Poll(ctx, poll) })
		}
	}
}

func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "configuration is served read-only", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
