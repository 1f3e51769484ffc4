// Command cascade-server is a reference HTTP frontend over the cache
// cascade: each request is matched against the configured routing
// expressions, rewritten into an upstream path and query, and served from the
// cascade on a hit; on a miss a stub factory synthesizes a body from the
// rewritten URL instead of contacting the upstream.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/imageflow/cascade/internal/cache"
	"github.com/imageflow/cascade/internal/config"
	"github.com/imageflow/cascade/internal/providers/badger"
	"github.com/imageflow/cascade/internal/providers/bbolt"
	"github.com/imageflow/cascade/internal/providers/memory"
	"github.com/imageflow/cascade/internal/providers/redis"
	"github.com/imageflow/cascade/internal/routing"
	"github.com/imageflow/cascade/internal/routing/charclass"
	"github.com/imageflow/cascade/internal/routing/template"
	"github.com/imageflow/cascade/internal/util/log"
	"github.com/imageflow/cascade/internal/util/metrics"
	"github.com/imageflow/cascade/internal/util/middleware"
	"github.com/imageflow/cascade/internal/util/tracing"
)

func main() {
	cfg, err := config.Load("cascade-server", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.Init(cfg.Logging)
	for _, w := range config.LoaderWarnings {
		log.Warn("config warning", log.Pairs{"detail": w})
	}

	shutdownTracer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Fatal("failed to initialize tracer", log.Pairs{"error": err.Error()})
	}
	defer shutdownTracer()

	providers, err := buildProviders(cfg)
	if err != nil {
		log.Fatal("failed to build cache providers", log.Pairs{"error": err.Error()})
	}

	cascadeInstance := cache.NewCascade(providers, cache.CascadeConfig{
		EnableRequestCoalescing: cfg.Cascade.EnableRequestCoalescing,
		CoalescingTimeout:       cfg.Cascade.CoalescingTimeout(),
		BloomEstimatedItems:     cfg.Cascade.BloomEstimatedItems,
		BloomFalsePositiveRate:  cfg.Cascade.BloomFalsePositiveRate,
		BloomSlots:              cfg.Cascade.BloomSlotCount,
		MaxUploadQueueBytes:     cfg.Cascade.MaxUploadQueueBytes,
		Observers:               []cache.Observer{metrics.Observer(), loggingObserver},
	})
	defer cascadeInstance.Close()

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	cascadeInstance.LoadBloom(bootCtx)
	cancelBoot()

	interner := charclass.NewInterner(4096)
	safety := template.Safety{AllowDotDot: cfg.Safety.AllowDotDotSegments}
	engine := routing.NewEngine(interner, safety)
	for _, rule := range cfg.Routes {
		if _, err := engine.AddRule(rule); err != nil {
			log.Fatal("failed to compile routing rule", log.Pairs{"rule": rule, "error": err.Error()})
		}
	}

	srv := &server{cfg: cfg, cascade: cascadeInstance, engine: engine}

	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(srv.handle)

	var handler http.Handler = router
	handler = middleware.Trace("frontend")(handler)
	handler = handlers.CompressHandler(handler)
	handler = handlers.RecoveryHandler()(handler)
	handler = handlers.CombinedLoggingHandler(logWriter{}, handler)

	addr := fmt.Sprintf("%s:%d", cfg.Frontend.ListenAddress, cfg.Frontend.ListenPort)

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.ListenAddress, cfg.Metrics.ListenPort)
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		log.Info("metrics listener starting", log.Pairs{"addr": metricsAddr})
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Error("metrics listener stopped", log.Pairs{"error": err.Error()})
		}
	}()

	log.Info("frontend listener starting", log.Pairs{"addr": addr})
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal("frontend listener stopped", log.Pairs{"error": err.Error()})
	}
}

func loggingObserver(evt cache.Event) {
	log.Debug("cache event", log.Pairs{
		"kind":     evt.Kind.String(),
		"key":      evt.Key,
		"provider": evt.ProviderName,
		"latency":  evt.Latency.String(),
		"detail":   evt.Detail,
	})
}

// logWriter adapts the structured logger to the io.Writer gorilla/handlers'
// CombinedLoggingHandler expects for access-log lines.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Info("access", log.Pairs{"line": string(p)})
	return len(p), nil
}

func buildProviders(cfg *config.CascadeConfig) ([]cache.Provider, error) {
	built := make(map[string]cache.Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		p, err := buildProvider(name, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		built[name] = p
	}

	ordered := make([]cache.Provider, 0, len(cfg.Cascade.ProviderOrder))
	for _, name := range cfg.Cascade.ProviderOrder {
		p, ok := built[name]
		if !ok {
			return nil, fmt.Errorf("provider_order references undefined provider %q", name)
		}
		ordered = append(ordered, p)
	}
	return ordered, nil
}

func buildProvider(name string, pc config.ProviderConfig) (cache.Provider, error) {
	switch pc.Type {
	case config.ProviderTypeMemory:
		return memory.New(name, pc.MaxEntries), nil
	case config.ProviderTypeBBolt:
		return bbolt.Open(name, pc.Path, pc.Compression)
	case config.ProviderTypeBadger:
		return badger.Open(name, pc.Path, pc.Compression)
	case config.ProviderTypeRedis:
		return redis.New(name, redis.Config{
			Endpoint:    pc.Endpoint,
			Password:    pc.Password,
			DB:          pc.DB,
			LatencyZone: pc.LatencyZone,
			Compress:    pc.Compression,
		}), nil
	default:
		return nil, fmt.Errorf("unrecognized provider type %q", pc.Type)
	}
}

// server holds the dependencies the catch-all handler needs to route,
// serve from cache, and produce a stub body on a miss.
type server struct {
	cfg     *config.CascadeConfig
	cascade *cache.Cascade
	engine  *routing.Engine
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rule, outcome, err := s.engine.Route(ctx, r.URL.Path, r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !outcome.Matched {
		w.Header().Set("X-Cache-Status", "no-route")
		http.NotFound(w, r)
		return
	}

	upstreamURL := s.cfg.Frontend.UpstreamBaseURL + outcome.Path
	if len(outcome.Query) > 0 {
		q := make([]byte, 0, 64)
		sep := byte('?')
		for k, v := range outcome.Query {
			q = append(q, sep)
			q = append(q, []byte(k)...)
			q = append(q, '=')
			q = append(q, []byte(v)...)
			sep = '&'
		}
		upstreamURL += string(q)
	}

	key := cache.NewCacheKey(outcome.Path, upstreamURL)
	result := s.cascade.GetOrCreate(ctx, key, func(ctx context.Context) ([]byte, cache.EntryMetadata, error) {
		// Stand-in for an origin fetch: dispatching a real upstream request
		// is out of scope here, so a miss synthesizes a deterministic body
		// from the rewritten URL, just enough to exercise storage/replication.
		body := []byte(fmt.Sprintf("stub origin response for %s", upstreamURL))
		return body, cache.NewEntryMetadata("text/plain", time.Now(), int64(len(body))), nil
	})

	w.Header().Set("X-Cache-Status", result.Status.String())
	if rule.Provider != "" {
		w.Header().Set("X-Cache-Provider-Hint", rule.Provider)
	}

	switch result.Status {
	case cache.StatusError:
		http.Error(w, result.ErrorDetail, http.StatusBadGateway)
		return
	case cache.StatusTimeout:
		http.Error(w, "timed out waiting on in-flight fetch", http.StatusGatewayTimeout)
		return
	}

	if result.ContentType != "" {
		w.Header().Set("Content-Type", result.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	if result.HasBuffer {
		_, _ = w.Write(result.Buffer)
	}
}
