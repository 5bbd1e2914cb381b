package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Tier names the retry class an error falls into. Data errors are never
// retried; every other tier carries its own attempt ceiling and backoff.
type Tier string

const (
	TierNone       Tier = "none"     // not retryable
	TierDatabase   Tier = "database" // operational database faults
	TierNetwork    Tier = "network"  // resets, timeouts, DNS
	TierHTTPSlow   Tier = "http_429" // 429 / 503 rate or capacity pressure
	TierHTTPServer Tier = "http_5xx" // 500 / 502 / 504
)

// TransientError tags an error as retryable with an optional HTTP status.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// pgOperationalClasses are the SQLSTATE classes treated as transient:
// connection exceptions, insufficient resources, operator intervention
// and the system-error class.
var pgOperationalClasses = map[string]bool{
	"08": true, // connection exception
	"53": true, // insufficient resources
	"57": true, // operator intervention
	"58": true, // system error
}

// Classify maps an error to its retry tier. Validation and integrity
// errors land in TierNone.
func Classify(err error) Tier {
	if err == nil {
		return TierNone
	}

	var te *TransientError
	if errors.As(err, &te) {
		switch te.StatusCode {
		case 429, 503:
			return TierHTTPSlow
		case 500, 502, 504:
			return TierHTTPServer
		case 0:
			return TierNetwork
		default:
			return TierNone
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgOperationalClasses[pgErr.Code[:2]] {
			return TierDatabase
		}
		return TierNone
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TierNetwork
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return TierNetwork
	}

	// Heuristics for wrapped errors from drivers and HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return TierNetwork
		}
	}

	return TierNone
}

// IsTransient reports whether an error belongs to any retryable tier.
func IsTransient(err error) bool {
	return Classify(err) != TierNone
}
