package main

import (
	"context"
	"time"
)

// defaultTimeoutSeconds bounds data file loading.
const defaultTimeoutSeconds = 60

// createTimeoutContext creates a context for loading data files.
// timeoutSeconds <= 0 selects the default.
func createTimeoutContext(timeoutSeconds int) (context.Context, context.CancelFunc) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
}
