// Package prometheus exposes engine counters and latency histograms as a
// prometheus.Collector and an HTTP scrape handler.
//
// Metric names come from internaldefs so they match the OpenTelemetry
// exporter.
package prometheus
