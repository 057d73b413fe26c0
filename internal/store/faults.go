package store

import (
	"fmt"
	"strings"
)

// FaultKind classifies a backing-store fault by the nature of its cause.
type FaultKind string

const (
	FaultAuth         FaultKind = "authentication"
	FaultConnectivity FaultKind = "connectivity"
	FaultUnknown      FaultKind = "unknown"
)

// Diagnostic describes a backing-store fault observed during a single
// operation. It travels with the operation's result instead of living on
// the store, so concurrent callers observe their own faults.
type Diagnostic struct {
	Kind    FaultKind `json:"kind"`
	Message string    `json:"message"`
}

// ClassifyFault maps a fault description to a FaultKind. It is a pure
// text-pattern match on the error message, not an error-type dispatch.
func ClassifyFault(msg string) FaultKind {
	lower := strings.ToLower(msg)

	authPatterns := []string{"login failed", "authentication", "authorization", "access denied", "permission denied"}
	for _, p := range authPatterns {
		if strings.Contains(lower, p) {
			return FaultAuth
		}
	}

	connPatterns := []string{"cannot open", "connection refused", "no such host", "timeout", "database is locked", "database is closed", "unable to open database"}
	for _, p := range connPatterns {
		if strings.Contains(lower, p) {
			return FaultConnectivity
		}
	}

	return FaultUnknown
}

// RemediationHint returns the operator guidance for a fault class.
func RemediationHint(kind FaultKind) string {
	switch kind {
	case FaultAuth:
		return "Check that the database user exists and has been granted read/write roles on the expense schema."
	case FaultConnectivity:
		return "Check that the database file or server is reachable, not locked by another process, and that firewall rules allow the connection."
	default:
		return "Verify the database configuration, schema migrations and access roles."
	}
}

// newDiagnostic builds the per-operation diagnostic for a store fault.
func newDiagnostic(op string, err error) *Diagnostic {
	kind := ClassifyFault(err.Error())
	return &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf("database operation %s failed: %v. %s", op, err, RemediationHint(kind)),
	}
}
