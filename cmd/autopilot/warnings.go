package main

import (
	"log"

	"github.com/draftwell/autopilot/internal/config"
)

// logConfigWarnings flags configurations that are valid but risky in
// production. Validation rejects outright errors; this is advisory only.
func logConfigWarnings(cfg *config.Config) {
	if !cfg.ReconcileEnabled {
		log.Println("WARNING [P0]: RECONCILE_ENABLED=false. A crashed execution leaves its guard " +
			"held forever and the rule never fires again. Enable the reconciler in production.")
	}

	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("WARNING [P1]: CIRCUIT_BREAKER_THRESHOLD=0. A down collaborator will be " +
			"retried at full rate on every trigger.")
	}

	if !cfg.MetricsEnabled {
		log.Println("WARNING [P1]: METRICS_ENABLED=false. No visibility into tick latency, " +
			"execution outcomes, or buffer saturation.")
	}

	if cfg.DispatcherWorkers == 1 {
		log.Println("INFO: DISPATCHER_WORKERS=1. Executions run strictly serially; a slow " +
			"handler delays every queued event.")
	}

	if cfg.RedisAddr == "" {
		log.Println("INFO: REDIS_ADDR not set; per-rule execution analytics disabled.")
	}
}
