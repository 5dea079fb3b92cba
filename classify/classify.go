// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package classify maps the heterogeneous failures coming out of the
// identity provider, the backend API and the transport layer into a small
// closed set of user-facing outcomes. All text shown to a user comes from
// here, never from raw provider error strings.
package classify

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind is the closed taxonomy of user-facing failure outcomes.
type Kind int

const (
	Unknown Kind = iota
	AccountAlreadyExists
	InvalidCredentials
	AccountNotFound
	AccountNotConfirmed
	RateLimited
	InvalidInput
	NetworkUnavailable
	ServerError
)

func (k Kind) String() string {
	switch k {
	case AccountAlreadyExists:
		return "account_already_exists"
	case InvalidCredentials:
		return "invalid_credentials"
	case AccountNotFound:
		return "account_not_found"
	case AccountNotConfirmed:
		return "account_not_confirmed"
	case RateLimited:
		return "rate_limited"
	case InvalidInput:
		return "invalid_input"
	case NetworkUnavailable:
		return "network_unavailable"
	case ServerError:
		return "server_error"
	}
	return "unknown"
}

// Error is a classified, user-presentable failure.
type Error struct {
	Kind        Kind
	UserMessage string

	// Recoverable reports whether retrying the same action later can
	// reasonably be expected to succeed.
	Recoverable bool
}

func (e Error) Error() string {
	return e.UserMessage
}

// CodeCarrier is implemented by errors that carry a provider error code
// (e.g. "UsernameExistsException"). Code matches take precedence over any
// textual matching.
type CodeCarrier interface {
	ProviderCode() string
}

// StatusCarrier is implemented by errors that carry an HTTP status code.
// It is consulted only as a fallback when no textual rule matched.
type StatusCarrier interface {
	StatusCode() int
}

var codeKinds = map[string]Kind{
	"UsernameExistsException":        AccountAlreadyExists,
	"AliasExistsException":           AccountAlreadyExists,
	"NotAuthorizedException":         InvalidCredentials,
	"UserNotFoundException":          AccountNotFound,
	"ResourceNotFoundException":      AccountNotFound,
	"UserNotConfirmedException":      AccountNotConfirmed,
	"CodeMismatchException":          AccountNotConfirmed,
	"TooManyRequestsException":       RateLimited,
	"LimitExceededException":         RateLimited,
	"TooManyFailedAttemptsException": RateLimited,
	"InvalidPasswordException":       InvalidInput,
	"InvalidParameterException":      InvalidInput,
}

// substringRules is matched in order; the first hit wins. Order matters:
// "already exists" must beat "not authorized" when both appear in the same
// message.
var substringRules = []struct {
	fragment string
	kind     Kind
}{
	{"already exists", AccountAlreadyExists},
	{"incorrect username or password", InvalidCredentials},
	{"not authorized", InvalidCredentials},
	{"user does not exist", AccountNotFound},
	{"user is not confirmed", AccountNotConfirmed},
	{"attempt limit exceeded", RateLimited},
	{"too many requests", RateLimited},
	{"password did not conform", InvalidInput},
	{"invalid email", InvalidInput},
	{"network connection was lost", NetworkUnavailable},
	{"connection refused", NetworkUnavailable},
	{"no such host", NetworkUnavailable},
	{"offline", NetworkUnavailable},
}

var kindMessages = map[Kind]string{
	AccountAlreadyExists: "An account with this email already exists.",
	InvalidCredentials:   "The email or password is incorrect.",
	AccountNotFound:      "No account exists for this email.",
	AccountNotConfirmed:  "This account has not been confirmed yet. Check your email for the confirmation link.",
	RateLimited:          "Too many attempts. Wait a moment and try again.",
	InvalidInput:         "The email or password format is not valid.",
	NetworkUnavailable:   "The network connection appears to be offline.",
	ServerError:          "The server hit a problem. Try again shortly.",
}

var kindRecoverable = map[Kind]bool{
	RateLimited:        true,
	NetworkUnavailable: true,
	ServerError:        true,
	Unknown:            true,
}

// Classify maps err onto the closed taxonomy. Matching precedence, earlier
// rules winning on conflict:
//
//  1. provider error codes anywhere in the chain
//  2. substrings of the outermost description
//  3. substrings of wrapped descriptions
//  4. transport-level fallbacks (timeouts, net errors, HTTP 5xx/429)
//  5. the caller-supplied default message with kind Unknown
//
// Classify is a pure function of its inputs; it performs no I/O.
func Classify(err error, defaultMessage string) Error {
	if err == nil {
		return Error{Kind: Unknown, UserMessage: defaultMessage, Recoverable: true}
	}

	if kind, ok := matchCode(err); ok {
		return build(kind, "")
	}

	if kind, ok := matchSubstrings(err.Error()); ok {
		return build(kind, "")
	}

	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		if kind, ok := matchSubstrings(inner.Error()); ok {
			return build(kind, "")
		}
	}

	if kind, ok := matchTransport(err); ok {
		return build(kind, "")
	}

	return Error{Kind: Unknown, UserMessage: defaultMessage, Recoverable: true}
}

func build(kind Kind, message string) Error {
	if message == "" {
		message = kindMessages[kind]
	}
	return Error{Kind: kind, UserMessage: message, Recoverable: kindRecoverable[kind]}
}

func matchCode(err error) (Kind, bool) {
	var coded CodeCarrier
	if !errors.As(err, &coded) {
		return Unknown, false
	}
	kind, ok := codeKinds[coded.ProviderCode()]
	return kind, ok
}

func matchSubstrings(description string) (Kind, bool) {
	lowered := strings.ToLower(description)
	for _, rule := range substringRules {
		if strings.Contains(lowered, rule.fragment) {
			return rule.kind, true
		}
	}
	return Unknown, false
}

func matchTransport(err error) (Kind, bool) {
	if errors.Is(err, context.DeadlineExceeded) {
		return NetworkUnavailable, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NetworkUnavailable, true
	}

	var statused StatusCarrier
	if errors.As(err, &statused) {
		switch code := statused.StatusCode(); {
		case code == 429:
			return RateLimited, true
		case code >= 500:
			return ServerError, true
		case code >= 400:
			return InvalidInput, true
		}
	}

	return Unknown, false
}
