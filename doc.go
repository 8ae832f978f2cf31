/*
Package bucketwatch is a live monitoring and control client for a remote
leaky-bucket admission service.

The service exposes four endpoints: GET /metrics for counters and bucket
occupancy, GET /api for one admission attempt, POST /config to replace the
capacity and leak rate, and POST /reset to zero the counters. bucketwatch
polls the first on a schedule, keeps the last 30 snapshots for the level
chart and drives the other three on operator request.

Packages:

  - pkg/model: snapshots, history points and configuration values
  - pkg/history: the bounded, copy-on-write history buffer
  - pkg/bucketapi: HTTP client for the four endpoints
  - pkg/monitor: poller, burst dispatcher, config reconciler and reset,
    all publishing through one state store
  - pkg/view: dashboard derivations and terminal rendering
  - pkg/scheduling: worker pool and cron-backed scheduler behind the poller
  - pkg/concurrency: one-permit guards for operator actions
  - pkg/metrics: Prometheus instrumentation
  - cmd/bucketwatch: the interactive terminal dashboard

Example usage:

	svc, _ := bucketapi.NewClient("http://localhost:8080", 5*time.Second)
	client, _ := monitor.New(monitor.Config{Service: svc})
	_ = client.Start()
	defer func() { <-client.Stop() }()

	res, err := client.SendBurst(ctx, 5)
	if err != nil {
		log.Printf("burst: %v", err)
	}
	fmt.Println(view.Render(view.New(client.State(), 5), 80))
*/
package bucketwatch
