// Package logging provides the structured logger used across ldapc.
//
// Loggers take a message plus alternating key/value pairs:
//
//	log := logging.New(logging.Config{Level: "debug", Format: "json", Output: "stderr"})
//	log.Info("bind complete", "mechanism", "SCRAM-SHA-256", "rounds", 2)
//
// Output is rendered by log/slog text or JSON handlers. Libraries default to
// NewNop so nothing is written unless the caller opts in.
package logging
