package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// LocationsTable is shared with the locations module so user lifecycle
// operations can keep technician sets consistent.
const LocationsTable = "locations"

const maxTxAttempts = 3

type sqlStater interface {
	SQLState() string
}

// isRetryable reports whether err is a PostgreSQL deadlock or serialization
// failure, both of which are safe to retry from the start of the transaction.
func isRetryable(err error) bool {
	var se sqlStater
	if errors.As(err, &se) {
		switch se.SQLState() {
		case "40P01", "40001":
			return true
		}
	}
	return false
}

// withRetry runs fn again when it fails with a retryable transaction error.
func withRetry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) {
			return err
		}
		slog.Warn("retrying transaction", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return err
}

// WithRetry is withRetry for the feature modules.
func WithRetry(fn func() error) error { return withRetry(fn) }

// jsonArrayOf encodes ids as a JSON array for jsonb containment queries.
func jsonArrayOf(ids ...uuid.UUID) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode ids: %w", err)
	}
	return string(b), nil
}

// JSONArrayOf is jsonArrayOf for the feature modules.
func JSONArrayOf(ids ...uuid.UUID) (string, error) { return jsonArrayOf(ids...) }

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var se sqlStater
	return errors.As(err, &se) && se.SQLState() == "23505"
}
