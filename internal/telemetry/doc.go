// Package telemetry sets up OpenTelemetry trace export and Pyroscope
// profiling for the command line tools. Library packages only depend on
// the otel API; this package supplies the SDK behind it.
package telemetry
