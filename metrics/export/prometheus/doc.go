// Package prometheus provides Prometheus collectors for goCredential metrics.
//
// [NewPrometheusExporter] accepts an [goCredential.Engine] and exposes an [http.Handler]
// that renders all goCredential counters and histograms in Prometheus text exposition format.
// Counter names are prefixed gocredential_*_total; the single histogram is
// gocredential_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
