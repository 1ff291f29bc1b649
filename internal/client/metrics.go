package client

import "time"

// Metrics receives operation telemetry. A nil Metrics disables collection.
type Metrics interface {
	// OperationStarted is called when a request has been written.
	OperationStarted(op string)

	// OperationCompleted is called once per sent operation. outcome is the
	// result code name for results or the error kind for failures.
	OperationCompleted(op string, outcome string, duration time.Duration)

	// UnsolicitedNotification is called for every notice received.
	UnsolicitedNotification(oid string)
}
