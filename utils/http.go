package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for outbound service-to-service calls
// (the bot worker's verify call). Market-data clients own their instance.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}
