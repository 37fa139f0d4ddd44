// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// FailureReason categorizes why a probe or a dispatch failed, so that
// operators get an actionable explanation rather than a bare error.
type FailureReason string

const (
	ReasonNone           FailureReason = ""
	ReasonAuth           FailureReason = "auth_error"
	ReasonPermission     FailureReason = "permission_error"
	ReasonRateLimit      FailureReason = "rate_limit_exceeded"
	ReasonModelNotFound  FailureReason = "model_not_found"
	ReasonQuotaExceeded  FailureReason = "quota_exceeded"
	ReasonTimeout        FailureReason = "timeout"
	ReasonConnection     FailureReason = "connection_error"
	ReasonInvalidRequest FailureReason = "invalid_request"
	ReasonServerError    FailureReason = "server_error"
	ReasonUnknown        FailureReason = "unknown"
)

// Classify maps an HTTP status code and/or an error to a FailureReason.
// The status code wins when both are given. A zero code and nil error
// classify as ReasonNone.
func Classify(statusCode int, err error) FailureReason {
	switch {
	case statusCode == http.StatusUnauthorized:
		return ReasonAuth
	case statusCode == http.StatusForbidden:
		return ReasonPermission
	case statusCode == http.StatusNotFound:
		return ReasonModelNotFound
	case statusCode == http.StatusTooManyRequests:
		return ReasonRateLimit
	case statusCode == http.StatusPaymentRequired:
		return ReasonQuotaExceeded
	case statusCode == http.StatusBadRequest:
		return ReasonInvalidRequest
	case statusCode >= http.StatusInternalServerError:
		return ReasonServerError
	}
	if err == nil {
		if statusCode != 0 && (statusCode < 200 || statusCode >= 300) {
			return ReasonUnknown
		}
		return ReasonNone
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ReasonConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonConnection
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) FailureReason {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "timeout"):
		return ReasonTimeout
	case strings.Contains(msg, "connection"):
		return ReasonConnection
	case strings.Contains(msg, "permission"), strings.Contains(msg, "forbidden"):
		return ReasonPermission
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(msg, "quota"), strings.Contains(msg, "exceeded"):
		return ReasonQuotaExceeded
	case strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"):
		return ReasonModelNotFound
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid"):
		return ReasonAuth
	default:
		return ReasonUnknown
	}
}
