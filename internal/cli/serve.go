package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mmdoc/pkg/observability"
	"github.com/matzehuels/mmdoc/pkg/pipeline"
)

const (
	defaultAddr     = "127.0.0.1:8000"
	shutdownTimeout = 5 * time.Second
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr     string
	watch    string // source tree rebuilt on change
	target   string
	noMirror bool
}

// serveCommand serves a built site for preview.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: defaultAddr, target: pipeline.TargetHTML}

	cmd := &cobra.Command{
		Use:   "serve [out]",
		Short: "Serve a built site for preview",
		Long: `Serve the files of a built site over HTTP.

With --watch the source tree is built first and rebuilt whenever a file in it
changes. Build and request metrics are exposed at /metrics and a liveness
check at /healthz.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := ""
			if len(args) == 1 {
				out = args[0]
			}
			if out == "" && opts.watch == "" {
				return fmt.Errorf("serve needs an output directory or --watch")
			}
			if out == "" {
				out = filepath.Join(opts.watch, pipeline.DefaultOutDir)
			}
			return c.runServe(cmd.Context(), out, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", opts.addr, "listen address")
	cmd.Flags().StringVarP(&opts.watch, "watch", "w", "", "source tree to build and rebuild on change")
	cmd.Flags().StringVarP(&opts.target, "target", "t", opts.target, "build target for --watch")
	cmd.Flags().BoolVar(&opts.noMirror, "no-mirror", false, "skip the artifact mirror")
	completeValues(cmd, "target", buildTargets)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, out string, opts serveOpts) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewPrometheus(reg)
	observability.SetRenderHooks(prom)
	observability.SetCacheHooks(prom)
	observability.SetHTTPHooks(prom)
	defer observability.Reset()

	if opts.watch != "" {
		if err := c.startWatch(ctx, out, opts); err != nil {
			return err
		}
	} else if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("output directory: %w", err)
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newServer(out, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	printSuccess("Serving %s", StyleValue.Render(out))
	printDetail("http://%s", opts.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// startWatch builds the source tree once and rebuilds it in the background on change.
func (c *CLI) startWatch(ctx context.Context, out string, opts serveOpts) error {
	cfg, err := c.loadConfig(opts.watch)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, opts.noMirror)
	if err != nil {
		return err
	}
	popts := pipeline.Options{SrcDir: opts.watch, OutDir: out, Target: opts.target}

	res, err := runner.BuildSite(ctx, popts)
	if err != nil {
		runner.Close()
		return err
	}
	printStats(res.Stats)

	go func() {
		defer runner.Close()
		err := pipeline.Watch(ctx, pipeline.WatchOptions{
			Dir:    opts.watch,
			Ignore: []string{out},
			Logger: c.Logger,
		}, func(ctx context.Context, changed []string) {
			c.Logger.Info("rebuilding", "changes", len(changed))
			res, err := runner.BuildSite(ctx, popts)
			if err != nil {
				c.Logger.Error("rebuild failed", "err", err)
				return
			}
			c.Logger.Info("rebuilt", "pages", res.Stats.Pages, "warnings", res.Stats.Warnings, "duration", res.Stats.Duration.Round(time.Millisecond))
		})
		if err != nil {
			c.Logger.Error("watch stopped", "err", err)
		}
	}()
	return nil
}

// newServer routes the preview endpoints and static files of dir.
func newServer(dir string, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observeRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/*", http.FileServer(http.Dir(dir)))
	return r
}

// observeRequests reports every request to the HTTP hooks.
func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
	})
}
