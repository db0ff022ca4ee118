// Package health provides the liveness, readiness and version endpoints of
// the Courier API.
//
// Liveness only says the process is up. Readiness runs the registered
// component checks concurrently, each bounded by the checker timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.Register("job_store", func(ctx context.Context) error {
//	    _, err := store.List(ctx, job.Filter{Limit: 1})
//	    return err
//	})
//	r.Get("/ready", checker.ReadinessHandler())
//
// A readiness report with any failing check has status "degraded" and is
// served with 503 Service Unavailable:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "job_store": {"status": "ok"},
//	        "queue": {"status": "unhealthy", "message": "dial tcp: connection refused"}
//	    },
//	    "timestamp": "2026-01-02T10:30:00Z"
//	}
package health
