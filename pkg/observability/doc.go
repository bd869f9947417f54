/*
Package observability exports Prometheus metrics for supervised components.

Metrics are fed through domain.LifecycleHooks, so any driver can be
instrumented without the runtime knowing about Prometheus:

	m := observability.NewMetrics()
	d, _ := warden.New("physics", "echo", warden.WithHooks(m.Hooks()))
	http.Handle("/metrics", m.Handler())
*/
package observability
