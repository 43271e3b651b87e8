package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

var (
	// ErrEmptyReply is returned when the provider answers with blank text.
	ErrEmptyReply = errors.New("generation endpoint returned an empty reply")
	// ErrNotConfigured is returned by the placeholder generator used when no
	// provider credentials are configured.
	ErrNotConfigured = errors.New("generation endpoint is not configured")
)

// ErrorKind is the closed set of generation failure classes.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindUnknown   ErrorKind = "unknown"
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindAuth      ErrorKind = "auth"
	KindQuota     ErrorKind = "quota"
	KindMalformed ErrorKind = "malformed"
)

// FallbackText is the reply used for failures that cannot be classified.
const FallbackText = "Oops! I encountered an error. Please try again later."

var kindMessages = map[ErrorKind]string{
	KindNetwork:   "Oops! I couldn't reach my career notes right now. Please check your connection and try again.",
	KindTimeout:   "Oops! That took me too long to answer. Please try again in a moment.",
	KindAuth:      "Oops! I'm not set up correctly right now. Please try again later.",
	KindQuota:     "Oops! Lots of people are asking me questions right now. Please try again in a little while.",
	KindMalformed: "Oops! I got my thoughts tangled. Please try asking again.",
}

// Message returns the user-facing text for the kind.
func (k ErrorKind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return FallbackText
}

// Classify maps a generation error to its kind. Nil maps to KindNone.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrEmptyReply) {
		return KindMalformed
	}
	if errors.Is(err, ErrNotConfigured) {
		return KindAuth
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	// Provider SDKs mostly surface HTTP failures as formatted strings.
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthorized", "unauthenticated", "permission denied", "api key", "invalid_api_key"):
		return KindAuth
	case containsAny(msg, "429", "quota", "rate limit", "resource exhausted", "resource_exhausted"):
		return KindQuota
	case containsAny(msg, "connection refused", "no such host", "connection reset", "eof"):
		return KindNetwork
	case containsAny(msg, "deadline exceeded", "timeout"):
		return KindTimeout
	}

	return KindUnknown
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
