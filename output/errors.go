package output

import (
	"errors"
	"fmt"

	"github.com/fatih/color"

	"storefront/apperr"
)

// Exit code constants
const (
	ExitSuccess      = 0
	ExitGeneral      = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitNetworkError = 4
	ExitConfigError  = 5
)

// CLIError is a structured error with user-facing context
type CLIError struct {
	Summary    string
	Detail     string
	Suggestion string
	ExitCode   int
}

// Error implements the error interface, returning the summary
func (e *CLIError) Error() string {
	return e.Summary
}

// Describe turns a core error into a CLIError, choosing the summary and
// suggestion from its kind.
func Describe(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	kind := apperr.KindOf(err)
	e := &CLIError{
		Summary:  apperr.Message(err),
		Detail:   err.Error(),
		ExitCode: ExitGeneral,
	}
	if e.Summary == e.Detail {
		e.Detail = ""
	}

	switch kind {
	case apperr.KindValidation:
		e.ExitCode = ExitUsageError
	case apperr.KindWrongPhase:
		e.ExitCode = ExitUsageError
		e.Suggestion = "Run 'storefront whoami' to see the current session."
	case apperr.KindInvalidCredentials, apperr.KindInvalidOTP:
		e.ExitCode = ExitAuthError
	case apperr.KindTokenRefreshFailed, apperr.KindTokenExpired:
		e.ExitCode = ExitAuthError
		e.Suggestion = "Run 'storefront login' to sign in again."
	case apperr.KindOTPThrottled:
		e.Suggestion = "Wait a minute before requesting another code."
	case apperr.KindNetworkFailure:
		e.ExitCode = ExitNetworkError
		e.Suggestion = "Check backend.base_url and that the backend is running."
	}
	return e
}

// FormatError prints a structured error message to stderr
func (p *Printer) FormatError(e *CLIError) {
	if p.useColors {
		color.New(color.FgRed, color.Bold).Fprintf(p.err, "Error: %s\n", e.Summary)
		if e.Detail != "" {
			fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
		}
		if e.Suggestion != "" {
			color.New(color.FgCyan).Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		}
	} else {
		fmt.Fprintf(p.err, "[ERROR] %s\n", e.Summary)
		if e.Detail != "" {
			fmt.Fprintf(p.err, "  Cause: %s\n", e.Detail)
		}
		if e.Suggestion != "" {
			fmt.Fprintf(p.err, "  Suggestion: %s\n", e.Suggestion)
		}
	}
}
