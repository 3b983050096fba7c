package providers

import "time"

const (
	// shutdownTimeout bounds how long shutdown waits for an outstanding save.
	shutdownTimeout = 10 * time.Second

	// TokenName is the token file the Google credentials are stored under.
	TokenName = "google"

	// rateBurst is the request burst allowed above the configured rate.
	rateBurst = 5
)
