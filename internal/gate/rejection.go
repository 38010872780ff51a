package gate

import (
	"fmt"
	"strings"
)

// Code classifies a Rejection.
type Code string

const (
	CodeUnauthenticated         Code = "unauthenticated"
	CodeInvalidToken            Code = "invalid_token"
	CodeRoleUndefined           Code = "role_undefined"
	CodeAccessDenied            Code = "access_denied"
	CodeInsufficientPermissions Code = "insufficient_permissions"
)

const (
	ReasonMissingHeader           = "missing header"
	ReasonMalformedScheme         = "malformed scheme"
	ReasonEmptyToken              = "empty token"
	ReasonAuthenticationRequired  = "authentication required"
	ReasonInvalidToken            = "invalid or expired token"
	ReasonVerificationFailure     = "verification failure"
	ReasonRoleUndefined           = "user role not defined"
	ReasonAccessDenied            = "access denied"
	ReasonInsufficientPermissions = "insufficient permissions"
)

// Rejection is the outcome of a failed gate check.
type Rejection struct {
	Code            Code
	Reason          string
	Message         string
	Required        []string
	UserPermissions []string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return fmt.Sprintf("%s: %s", r.Code, r.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", r.Code, r.Reason, r.Message)
}

// Unauthenticated reports whether the caller presented no usable credential,
// as opposed to presenting one that was refused.
func (r *Rejection) Unauthenticated() bool {
	return r.Code == CodeUnauthenticated
}

func unauthenticated(reason string) *Rejection {
	return &Rejection{Code: CodeUnauthenticated, Reason: reason}
}

func invalidToken(reason string) *Rejection {
	return &Rejection{Code: CodeInvalidToken, Reason: reason}
}

func roleUndefined() *Rejection {
	return &Rejection{Code: CodeRoleUndefined, Reason: ReasonRoleUndefined}
}

func accessDenied(required []string, role string) *Rejection {
	return &Rejection{
		Code:     CodeAccessDenied,
		Reason:   ReasonAccessDenied,
		Message:  fmt.Sprintf("Required roles: %s. Your role: %s", strings.Join(required, ", "), role),
		Required: required,
	}
}

func missingPermissions(required, missing, granted []string) *Rejection {
	return &Rejection{
		Code:            CodeInsufficientPermissions,
		Reason:          ReasonInsufficientPermissions,
		Message:         "Missing permissions: " + strings.Join(missing, ", "),
		Required:        required,
		UserPermissions: granted,
	}
}

func noneOfPermissions(requested, granted []string) *Rejection {
	return &Rejection{
		Code:            CodeInsufficientPermissions,
		Reason:          ReasonInsufficientPermissions,
		Message:         "Need at least one of: " + strings.Join(requested, ", "),
		Required:        requested,
		UserPermissions: granted,
	}
}
