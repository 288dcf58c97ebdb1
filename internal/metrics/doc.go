// Package metrics provides build metrics for the site builder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never needs nil checks:
//
//	b, err := site.New(dir, cfg, site.WithRecorder(metrics.NoopRecorder{}))
//
// The Prometheus implementation registers its collectors on a caller-supplied
// registry. The CLI either serves that registry over HTTP (serve command) or
// writes it in the node-exporter textfile format after a build (--metrics-file).
package metrics
