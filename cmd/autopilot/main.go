package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/draftwell/autopilot/internal/analytics"
	"github.com/draftwell/autopilot/internal/api"
	"github.com/draftwell/autopilot/internal/circuitbreaker"
	"github.com/draftwell/autopilot/internal/collab"
	"github.com/draftwell/autopilot/internal/config"
	"github.com/draftwell/autopilot/internal/dispatcher"
	"github.com/draftwell/autopilot/internal/guard"
	"github.com/draftwell/autopilot/internal/metrics"
	"github.com/draftwell/autopilot/internal/monitor"
	"github.com/draftwell/autopilot/internal/reconciler"
	"github.com/draftwell/autopilot/internal/scheduler"
	"github.com/draftwell/autopilot/internal/store/postgres"
	"github.com/draftwell/autopilot/internal/transport/channel"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`autopilot - automation rule engine for content operations

Usage:
  autopilot <command>

Commands:
  serve      Start the rule engine (scheduler, monitor, dispatcher, API)
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for execution analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  TICK_INTERVAL             Scheduler tick interval (default: "1m")
  QUEUE_CHECK_INTERVAL      Queue-low monitor interval (default: "1h")
  TRENDING_CHECK_INTERVAL   Trending monitor interval (default: "2h")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  DISPATCHER_WORKERS        Concurrent execution workers (default: "4")
  COLLAB_TIMEOUT            Per-collaborator call timeout (default: "30s")
  EVENTBUS_BUFFER_SIZE      Trigger event buffer size (default: "100")

  CIRCUIT_BREAKER_THRESHOLD Failures before a collaborator opens (default: "5", 0 disables)
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown (default: "2m")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  RECONCILE_ENABLED         Enable stale guard reconciler (default: "true")
  RECONCILE_INTERVAL        How often to sweep guards (default: "5m")
  RECONCILE_THRESHOLD       Age before a held guard is stale (default: "30m")

  SEED_DEFAULT_RULES        Seed the default rule set on startup (default: "true")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	logConfigWarnings(&cfg)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("autopilot: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db)

	if cfg.SeedDefaultRules {
		seedCtx, seedCancel := context.WithTimeout(context.Background(), cfg.DBOpTimeout)
		err := store.EnsureDefaultRules(seedCtx)
		seedCancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed default rules: %v\n", err)
			return exitRuntimeError
		}
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("autopilot: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("autopilot: METRICS_ENABLED not set; metrics disabled")
	}

	// Create event bus with optional metrics
	var busOpts []channel.Option
	if metricsSink != nil {
		busOpts = append(busOpts, channel.WithMetrics(metricsSink))
	}
	bus := channel.NewEventBus(cfg.EventBusBufferSize, busOpts...)

	g := guard.New()

	// In-memory collaborators until real integrations are configured.
	collabs := dispatcher.Collaborators{
		Clients:   collab.NewDirectory(),
		Catalog:   collab.NewCatalog(),
		Generator: collab.NewGenerator(),
		Content:   collab.NewContentStore(),
		Publisher: collab.NewPublisher(),
		Notifier:  collab.NewNotifier(),
	}

	disp := dispatcher.New(store, collabs, g).
		WithCollaboratorTimeout(cfg.CollabTimeout)
	if metricsSink != nil {
		disp = disp.WithMetrics(metricsSink)
	}

	if cfg.CircuitBreakerThreshold > 0 {
		breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
		disp = disp.WithBreaker(breaker)
		log.Printf("autopilot: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	} else {
		log.Println("autopilot: CIRCUIT_BREAKER_THRESHOLD=0; circuit breaker disabled")
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient)
		disp = disp.WithAnalytics(sink)
		log.Printf("autopilot: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("autopilot: REDIS_ADDR not set; analytics disabled")
	}

	sched := scheduler.New(
		scheduler.Config{TickInterval: cfg.TickInterval},
		store,
		bus,
	)
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	mon := monitor.New(
		monitor.Config{
			QueueCheckInterval:    cfg.QueueCheckInterval,
			TrendingCheckInterval: cfg.TrendingCheckInterval,
		},
		store,
		collabs.Clients,
		collab.NewTrendingFeed(),
		bus,
	)
	if metricsSink != nil {
		mon = mon.WithMetrics(metricsSink)
	}

	apiHandler := api.NewHandler(store, bus).WithHealthChecker(db)

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler.Router())
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("autopilot: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("autopilot: http server error: %v", err)
		}
	}()

	// Separate contexts for producers and consumers to enable ordered
	// shutdown: stop emitting first, then drain the workers.
	producerCtx, cancelProducers := context.WithCancel(context.Background())
	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	var producerWg sync.WaitGroup
	var workerWg sync.WaitGroup
	var reconcilerWg sync.WaitGroup
	var cancelReconciler context.CancelFunc

	producerWg.Add(1)
	go func() {
		defer producerWg.Done()
		sched.Run(producerCtx)
	}()

	producerWg.Add(1)
	go func() {
		defer producerWg.Done()
		mon.Run(producerCtx)
	}()

	for i := 0; i < cfg.DispatcherWorkers; i++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			disp.Run(workerCtx, bus.Channel())
		}()
	}
	log.Printf("autopilot: %d dispatcher workers started", cfg.DispatcherWorkers)

	if cfg.ReconcileEnabled {
		var reconcilerCtx context.Context
		reconcilerCtx, cancelReconciler = context.WithCancel(context.Background())
		recon := reconciler.New(
			reconciler.Config{
				Interval:  cfg.ReconcileInterval,
				Threshold: cfg.ReconcileThreshold,
			},
			g,
			store,
		)
		if metricsSink != nil {
			recon = recon.WithMetrics(metricsSink)
		}
		reconcilerWg.Add(1)
		go func() {
			defer reconcilerWg.Done()
			recon.Run(reconcilerCtx)
		}()
		log.Printf("autopilot: reconciler enabled (interval=%s, threshold=%s)",
			cfg.ReconcileInterval, cfg.ReconcileThreshold)
	} else {
		log.Println("autopilot: RECONCILE_ENABLED=false; reconciler disabled")
	}

	log.Printf("autopilot: started (tick=%s, http=%s)", cfg.TickInterval, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("autopilot: received signal %v, shutting down", received)

	// Phase 1: Stop producers (no new events emitted)
	log.Println("autopilot: stopping scheduler and monitor...")
	cancelProducers()
	producerWg.Wait()
	log.Println("autopilot: producers stopped")

	// Phase 2: Stop reconciler
	if cancelReconciler != nil {
		log.Println("autopilot: stopping reconciler...")
		cancelReconciler()
		reconcilerWg.Wait()
		log.Println("autopilot: reconciler stopped")
	}

	// Phase 3: Stop workers (they drain buffered events before returning)
	log.Println("autopilot: stopping dispatcher workers (draining events)...")
	cancelWorkers()
	workerWg.Wait()
	log.Println("autopilot: dispatcher workers stopped")

	// Phase 4: Stop HTTP server with graceful shutdown
	log.Println("autopilot: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("autopilot: http server shutdown error: %v", err)
	}
	log.Println("autopilot: http server stopped")

	log.Println("autopilot: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("autopilot version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
