package logging

import "github.com/google/uuid"

// GenerateConnID returns a random identifier used to correlate the log
// records of one connection.
func GenerateConnID() string {
	return uuid.NewString()
}
