// Orrery detects astrological transits against stored natal charts and turns
// them into personalised alerts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/prof"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	otelpyroscope "github.com/grafana/otel-profiling-go"

	"github.com/linnemanlabs/go-core/health"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/orrery/internal/alert"
	"github.com/linnemanlabs/orrery/internal/alert/memstore"
	"github.com/linnemanlabs/orrery/internal/alert/pgstore"
	"github.com/linnemanlabs/orrery/internal/alertapi"
	"github.com/linnemanlabs/orrery/internal/authmw"
	oc "github.com/linnemanlabs/orrery/internal/cfg"
	"github.com/linnemanlabs/orrery/internal/ephemeris"
	"github.com/linnemanlabs/orrery/internal/llm/claude"
	"github.com/linnemanlabs/orrery/internal/llm/gemini"
	"github.com/linnemanlabs/orrery/internal/natal"
	"github.com/linnemanlabs/orrery/internal/pacer"
	"github.com/linnemanlabs/orrery/internal/postgres"
	"github.com/linnemanlabs/orrery/internal/scan"
	"github.com/linnemanlabs/orrery/internal/transit"
)

const appName = "orrery"
const component = "server"

// natalStore is what the server needs from a natal chart backend.
type natalStore interface {
	transit.ChartStore
	alert.ProfileStore
	scan.Users
	alertapi.ChartWriter
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set app name and component
	v.AppName = appName
	v.Component = component

	// Get build/version info
	vi := v.Get()

	// each package registers its own flags and options struct
	var (
		appCfg    oc.Config
		httpCfg   httpserver.Config
		httpmwCfg httpmw.Config
		logCfg    log.Config
		opsCfg    opshttp.Config
		profCfg   prof.Config
		traceCfg  otelx.Config
	)

	appCfg.RegisterFlags(flag.CommandLine)
	httpCfg.RegisterFlags(flag.CommandLine)
	httpmwCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	opsCfg.RegisterFlags(flag.CommandLine)
	profCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	// cmdline flags win; env vars only fill what was not set
	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	cfg.FillFromEnv(flag.CommandLine, "ORRERY_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		httpCfg.Validate(),
		httpmwCfg.Validate(),
		logCfg.Validate(),
		opsCfg.Validate(),
		profCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// cross-cutting checks that only main can validate
	if appCfg.APIPort == opsCfg.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", appCfg.APIPort)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", appCfg.APIPort,
		"admin_port", opsCfg.Port,
		"llm_provider", appCfg.LLMProvider,
		"ephemeris_endpoint", appCfg.EphemerisEndpoint,
		"ephemeris_file", appCfg.EphemerisFile,
		"batch_interval", appCfg.BatchInterval,
		"batch_burst", appCfg.BatchBurst,
		"scan_time", appCfg.ScanTime,
		"scan_timezone", appCfg.ScanTimezone,
		"enable_pprof", opsCfg.EnablePprof,
		"enable_pyroscope", profCfg.EnablePyroscope,
		"enable_tracing", traceCfg.EnableTracing,
		"trace_sample", traceCfg.TraceSample,
		"otlp_endpoint", traceCfg.OTLPEndpoint,
		"trusted_proxy_hops", httpmwCfg.TrustedProxyHops,
	)

	// Start profiling before anything else so the whole lifetime is covered
	profOpts := profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
		"source":    "lmlabs-go-agent",
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", profCfg.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}
	profiling := profErr == nil && profCfg.EnablePyroscope

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	// Tag spans with pyroscope profile ids so traces link to flame graphs
	if profiling {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(otel.GetTracerProvider()))
	}

	var m = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)
	m.SetProfilingActive(profiling)

	// Stores: postgres when configured, otherwise process memory
	var (
		alertStore alert.Store
		charts     natalStore
	)
	if appCfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:       appCfg.DatabaseURL,
			MaxConns:  int32(appCfg.DBMaxConns), //nolint:gosec // bounded by flag validation
			SlowQuery: appCfg.DBSlowQuery,
		})
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		if alertStore, err = pgstore.New(ctx, pool); err != nil {
			return fmt.Errorf("pgstore init: %w", err)
		}
		if charts, err = natal.NewPGStore(ctx, pool); err != nil {
			return fmt.Errorf("natal store init: %w", err)
		}
		L.Info(ctx, "using postgres stores")
	} else {
		alertStore = memstore.New()
		charts = natal.NewMemStore()
		L.Info(ctx, "using in-memory stores (no database-url configured)")
	}

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orrery_db_query_duration_seconds",
		Help:    "Duration of individual database queries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "route", "outcome"})
	m.Registry().MustRegister(dbQueryDuration)

	postgres.SetQueryObserver(postgres.QueryObserverFunc(
		func(_ context.Context, operation, route, outcome string, dur time.Duration) {
			dbQueryDuration.WithLabelValues(operation, route, outcome).Observe(dur.Seconds())
		},
	))

	eph, err := newEphemeris(appCfg, L)
	if err != nil {
		return err
	}

	provider, model, err := newProvider(ctx, appCfg)
	if err != nil {
		return err
	}
	L.Info(ctx, "initialized LLM provider", "provider", appCfg.LLMProvider, "model", model)

	transitMetrics := transit.NewMetrics(m.Registry())
	alertMetrics := alert.NewMetrics(m.Registry())
	scanMetrics := scan.NewMetrics(m.Registry())

	detector := transit.NewDetector(eph, charts, L, transitMetrics.Hooks())
	detector.SetFetchTimeout(appCfg.EphemerisTimeout)

	generator := alert.NewGenerator(provider, charts, alertStore, L, alertMetrics.Hooks())
	generator.SetModel(model)
	generator.SetTimeout(appCfg.GenerationTimeout)

	alertSvc := alert.NewService(generator, alertStore, pacer.New(appCfg.BatchInterval, appCfg.BatchBurst), L, alertMetrics.Hooks())

	// Daily scan, optional
	var scheduler *scan.Scheduler
	if appCfg.ScanTime != "" {
		loc, err := time.LoadLocation(appCfg.ScanTimezone)
		if err != nil {
			return fmt.Errorf("scan timezone: %w", err)
		}
		job := scan.NewJob(charts, detector, alertSvc, L, scanMetrics.Hooks())
		scheduler, err = scan.NewScheduler(job, appCfg.ScanTime, loc, L)
		if err != nil {
			return fmt.Errorf("scan scheduler: %w", err)
		}
		if err := scheduler.Start(postgres.WithOperation(ctx, "scan")); err != nil {
			return fmt.Errorf("scan scheduler: %w", err)
		}
	}

	// setup toggle for server shutdown. this is used to fail readiness checks
	// during shutdown to drain connections from load balancer before killing the process.
	var shutdownGate health.ShutdownGate

	readiness := health.All(
		shutdownGate.Probe(),
	)
	// liveness is always true if the app is able to respond
	liveness := health.Fixed(true, "")

	opsOpts := opsCfg.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	// admin listener is for internal monitoring only
	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}
	defer func() {
		err := opsHTTPStop(context.Background())
		if err != nil {
			L.Error(ctx, err, "failed to stop ops http listener")
		}
	}()

	r := chi.NewRouter()

	r.Use(middleware.Compress(5, "application/json"))

	// Annotate logger (and tracer if trace is recording) with http.route from chi route pattern
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(dbRequestStats)

	r.Use(httpmw.AccessLog())

	// 413 above the limit; a full batch of transits fits comfortably
	r.Use(httpmw.MaxBody(1024 * 64))

	r.Get("/-/healthy", health.HealthzHandler(liveness))
	r.Get("/-/ready", health.ReadyzHandler(readiness))

	api := alertapi.New(L, detector, alertSvc, charts)
	r.Group(func(r chi.Router) {
		r.Use(authmw.BearerToken(appCfg.APITokens()...))
		api.RegisterRoutes(r)
	})

	// middleware stack for main listener, outermost sees the raw request first
	var h http.Handler = r

	// Request-scoped logging (inner so it sees trace_id, chi route, etc)
	h = httpmw.WithLogger(L)(h)

	h = httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id")(h)

	h = otelhttp.NewHandler(h, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// dont trace health/readiness checks
			return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready"
		}),
		// AnnotateHTTPRoute will rename the span later to the final route pattern
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(_ *http.Request) bool { return true }),
	)

	h = m.Middleware(h)

	h = httpmw.ClientIPWithOptions(httpmw.ClientIPOptions{
		TrustedHops: httpmwCfg.TrustedProxyHops,
	})(h)

	h = httpmw.RequestID("X-Request-Id")(h)

	// Outer to catch panics from any downstream middleware or handlers
	h = httpmw.Recover(L, nil)(h)

	h = httpmw.SecurityHeaders(h)

	apiOpts, err := httpCfg.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}

	apiHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", appCfg.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		return err
	}
	defer func() {
		err := apiHTTPStop(context.Background())
		if err != nil {
			L.Error(ctx, err, "failed to stop api http listener")
		}
	}()

	if err := notifySystemd(); err != nil {
		// worst case systemd kills the process after its start timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()

	L.Info(context.Background(), "shutdown signal received")

	shutdownGate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	drainDuration := time.Duration(appCfg.DrainSeconds) * time.Second
	L.Info(context.Background(), "sleeping for drain period", "drain_seconds", appCfg.DrainSeconds)
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainDuration):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	// Shutdown components with per-component budget sliced from total.
	// stopProf is synchronous and needs no context, so it's excluded.
	type stopFn struct {
		name string
		fn   func(context.Context) error
	}
	stopFns := []stopFn{
		{"api http server", apiHTTPStop},
		{"ops http server", opsHTTPStop},
	}
	if scheduler != nil {
		stopFns = append(stopFns, stopFn{"scan scheduler", scheduler.Stop})
	}
	if shutdownOtelx != nil {
		stopFns = append(stopFns, stopFn{"otel", shutdownOtelx})
	}

	budget := time.Duration(appCfg.ShutdownBudgetSeconds) * time.Second
	perComponent := budget / time.Duration(len(stopFns))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	for _, s := range stopFns {
		cctx, ccancel := context.WithTimeout(shutdownCtx, perComponent)
		if err := s.fn(cctx); err != nil {
			L.Error(context.Background(), err, s.name+" shutdown")
		}
		ccancel()
	}

	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}

// newEphemeris picks the HTTP service or the snapshot file.
func newEphemeris(c oc.Config, logger log.Logger) (transit.Ephemeris, error) {
	if c.EphemerisEndpoint != "" {
		return ephemeris.NewHTTPProvider(c.EphemerisEndpoint, c.EphemerisTimeout, logger), nil
	}
	p, err := ephemeris.LoadFile(c.EphemerisFile)
	if err != nil {
		return nil, fmt.Errorf("ephemeris file: %w", err)
	}
	return p, nil
}

// newProvider builds the configured generative text provider and returns the
// model it will be asked for.
func newProvider(ctx context.Context, c oc.Config) (alert.Provider, string, error) {
	switch c.LLMProvider {
	case oc.ProviderGemini:
		p, err := gemini.New(ctx, c.GeminiAPIKey, c.GeminiModel)
		if err != nil {
			return nil, "", fmt.Errorf("gemini provider: %w", err)
		}
		return p, c.GeminiModel, nil
	case oc.ProviderClaude:
		return claude.New(c.ClaudeAPIKey, c.ClaudeModel), c.ClaudeModel, nil
	}
	return nil, "", fmt.Errorf("unknown llm provider %q", c.LLMProvider)
}

// dbRequestStats labels database queries with the request method and
// records the per-request query count on the request span.
func dbRequestStats(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := postgres.WithCallStats(postgres.WithOperation(req.Context(), req.Method))
		next.ServeHTTP(w, req.WithContext(ctx))

		if s, ok := postgres.CallStatsFromContext(ctx); ok {
			queries, total, errs := s.Snapshot()
			if queries > 0 {
				trace.SpanFromContext(ctx).SetAttributes(
					attribute.Int("orrery.db.queries", queries),
					attribute.Int("orrery.db.errors", errs),
					attribute.Float64("orrery.db.duration_seconds", total.Seconds()),
				)
			}
		}
	})
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr) //nolint:gosec,noctx // addr comes from systemd, no context support for unixgram dial
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	return nil
}
