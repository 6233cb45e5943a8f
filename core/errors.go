package core

import (
	"errors"
)

var (
	ErrConfigurationIncomplete = errors.New("configuration_incomplete")
	ErrTransport               = errors.New("transport_error")
	ErrAuthorizationServer     = errors.New("authorization_server_error")
	ErrProfileParse            = errors.New("profile_parse_error")
	ErrAccountClash            = errors.New("account_clash")
	ErrPrivilegedAccount       = errors.New("privileged_account_rejected")
)

// User-facing messages for terminal failures.
const (
	MsgAccountClash      = "Single Sign On Failed. User mismatch or clash with existing data and SSO can not complete."
	MsgPrivilegedAccount = "For security reasons, this user can not use Single Sign On"
	MsgProfileParse      = "Single Sign On Failed. The identity provider returned an unreadable profile."
	MsgConfiguration     = "Single Sign On is not configured."
)

// FlowError is the single error type returned by every step of the SSO flow.
// Kind is one of the sentinels above; Message is safe to show to the visitor.
type FlowError struct {
	Kind    error
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *FlowError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newFlowError(kind error, msg string, err error) *FlowError {
	if msg == "" {
		msg = defaultMessage(kind, err)
	}
	return &FlowError{Kind: kind, Message: msg, Err: err}
}

func defaultMessage(kind, err error) string {
	switch kind {
	case ErrAccountClash:
		return MsgAccountClash
	case ErrPrivilegedAccount:
		return MsgPrivilegedAccount
	case ErrProfileParse:
		return MsgProfileParse
	case ErrConfigurationIncomplete:
		return MsgConfiguration
	}
	if err != nil {
		return "Something went wrong: " + err.Error()
	}
	return "Something went wrong"
}

// UserMessage returns the visitor-facing message for err.
func UserMessage(err error) string {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "Something went wrong"
}
