package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies the class of a failure.
type Kind int

const (
	KindUnknownStatus Kind = iota
	KindAuth
	KindForbidden
	KindRateLimit
	KindServer
	KindNetwork
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindForbidden:
		return "ForbiddenError"
	case KindRateLimit:
		return "RateLimitError"
	case KindServer:
		return "ServerError"
	case KindNetwork:
		return "NetworkError"
	case KindConfig:
		return "ConfigError"
	default:
		return "UnknownStatusError"
	}
}

// Error is a classified request failure. It carries no retry policy.
type Error struct {
	Kind    Kind
	Status  int // zero when no response was received
	Message string
	Cause   error
}

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrAuth          = &Error{Kind: KindAuth}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrRateLimit     = &Error{Kind: KindRateLimit}
	ErrServer        = &Error{Kind: KindServer}
	ErrUnknownStatus = &Error{Kind: KindUnknownStatus}
	ErrNetwork       = &Error{Kind: KindNetwork}
	ErrConfig        = &Error{Kind: KindConfig}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if errors.As(target, &t) && t != nil {
		return e.Kind == t.Kind
	}
	return false
}

// FromStatus classifies a non-2xx response. body may carry an upstream
// message, which is used only for statuses without a fixed message.
func FromStatus(status int, body []byte) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Kind: KindAuth, Status: status, Message: "Invalid API key"}
	case http.StatusForbidden:
		return &Error{Kind: KindForbidden, Status: status, Message: "API access forbidden"}
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Status: status, Message: "rate limit exceeded"}
	case http.StatusInternalServerError:
		return &Error{Kind: KindServer, Status: status, Message: "server error"}
	case http.StatusServiceUnavailable:
		return &Error{Kind: KindServer, Status: status, Message: "temporarily unavailable"}
	}
	msg := upstreamMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("API error: %d", status)
	}
	return &Error{Kind: KindUnknownStatus, Status: status, Message: msg}
}

// FromTransport classifies a request that was sent but got no response.
func FromTransport(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "unable to reach API", Cause: err}
}

// FromRequest classifies a request that could not be built or sent.
func FromRequest(err error) *Error {
	return &Error{Kind: KindConfig, Message: "request configuration error", Cause: err}
}

// KindOf returns the Kind of err and whether err is classified at all.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind, true
	}
	return 0, false
}

// Transient reports whether err is likely to succeed on another attempt:
// network failures, server errors and rate limiting.
func Transient(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindNetwork, KindServer, KindRateLimit:
		return true
	default:
		return false
	}
}

// upstreamMessage digs a message out of common JSON error shapes:
// {"error":{"message":...}}, {"error":"..."}, {"msg":...}, {"message":...}.
func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Msg     string          `json:"msg"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
		var flat string
		if err := json.Unmarshal(payload.Error, &flat); err == nil && strings.TrimSpace(flat) != "" {
			return strings.TrimSpace(flat)
		}
	}
	if msg := strings.TrimSpace(payload.Msg); msg != "" {
		return msg
	}
	return strings.TrimSpace(payload.Message)
}
