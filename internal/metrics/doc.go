// Package metrics provides build metrics for songbuilder.
//
// Components receive a Recorder through dependency injection. NoopRecorder is the
// default so callers never need nil checks; PrometheusRecorder registers real
// collectors on a registry, which the CLI can dump to a node-exporter textfile
// after a build:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	orch, _ := build.New(desc, basename, factory, build.WithRecorder(rec))
//	_ = orch.Execute(ctx, steps)
//	_ = metrics.WriteTextfile(reg, "/var/lib/node_exporter/songbuilder.prom")
package metrics
