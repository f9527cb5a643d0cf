// Package apperrors defines the denial-reason taxonomy (spec §7) and the
// RFC 7807 Problem Detail envelope every HTTP-facing error uses. Shape is
// lifted straight from the teacher's pkg/api/apierror.go.
package apperrors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/helmward/agentgov/pkg/model"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	Type           string `json:"type"`
	Title          string `json:"title"`
	Status         int    `json:"status"`
	Detail         string `json:"detail,omitempty"`
	Instance       string `json:"instance,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// ErrorEnvelope is the wire envelope from spec §6: {error:{code,message},
// requestId?, responseTimeMs?}.
type ErrorEnvelope struct {
	Error struct {
		Code    model.DenialReason `json:"code"`
		Message string             `json:"message"`
	} `json:"error"`
	RequestID      string `json:"requestId,omitempty"`
	ResponseTimeMs int64  `json:"responseTimeMs,omitempty"`
}

// NewEnvelope builds the wire envelope for a denial reason.
func NewEnvelope(reason model.DenialReason, message, requestID string, responseTimeMs int64) ErrorEnvelope {
	env := ErrorEnvelope{RequestID: requestID, ResponseTimeMs: responseTimeMs}
	env.Error.Code = reason
	env.Error.Message = message
	return env
}

// httpStatus maps a denial reason to the closest HTTP status.
func httpStatus(reason model.DenialReason) int {
	switch reason {
	case model.DenialInsufficientTrust, model.DenialResourceRestricted,
		model.DenialDataSensitivityExceeded, model.DenialContextMismatch,
		model.DenialPolicyViolation:
		return http.StatusForbidden
	case model.DenialRateLimitExceeded:
		return http.StatusTooManyRequests
	case model.DenialExpiredIntent, model.DenialInvalidManifest,
		model.DenialInvalidAgent, model.DenialInvalidSignature,
		model.DenialDuplicateProof:
		return http.StatusBadRequest
	case model.DenialSystemError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// WriteDenial writes a denial reason as both the ErrorEnvelope and a
// matching HTTP status code.
func WriteDenial(w http.ResponseWriter, reason model.DenialReason, message, requestID string, responseTimeMs int64) {
	env := NewEnvelope(reason, message, requestID, responseTimeMs)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(reason))
	_ = json.NewEncoder(w).Encode(env)
}

// WriteProblem writes an RFC 7807 problem response for transport-level
// failures that aren't modeled as a DenialReason (malformed requests,
// auth failures, etc).
func WriteProblem(w http.ResponseWriter, status int, title, detail, instance, requestID string) {
	problem := &ProblemDetail{
		Type:      fmt.Sprintf("https://agentgov.internal/errors/%d", status),
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: requestID,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Remediation suggests a corrective action for a denial reason, surfaced
// to clients per spec §7 "User-visible failures".
func Remediation(reason model.DenialReason) []string {
	switch reason {
	case model.DenialInsufficientTrust:
		return []string{"increase trust score", "request a lower-risk action"}
	case model.DenialResourceRestricted, model.DenialDataSensitivityExceeded:
		return []string{"reduce requested sensitivity", "request a narrower data scope"}
	case model.DenialContextMismatch:
		return []string{"use a higher observability tier", "avoid production environment for this trust band"}
	case model.DenialRateLimitExceeded:
		return []string{"retry after the rate-limit window resets"}
	case model.DenialExpiredIntent:
		return []string{"submit a new intent with a future expiry"}
	default:
		return nil
	}
}
