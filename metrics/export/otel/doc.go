// Package otel publishes engine metrics through an OpenTelemetry meter
// using observable instruments that read a snapshot on each collection.
package otel
