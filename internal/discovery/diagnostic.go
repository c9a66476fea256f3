// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"

	"github.com/adhd-framework/adhd/pkg/manifest"
	"github.com/adhd-framework/adhd/pkg/source"
)

const (
	// SeverityWarning indicates a recoverable discovery warning.
	SeverityWarning Severity = "warning"
	// SeverityError indicates a non-fatal discovery error diagnostic.
	SeverityError Severity = "error"

	// CodeManifestUnavailable marks a source whose manifest could not be fetched.
	CodeManifestUnavailable = "manifest_unavailable"
	// CodeManifestInvalid marks a source whose manifest could not be parsed.
	CodeManifestInvalid = "manifest_invalid"
)

// ErrInvalidSeverity is returned when a Severity value is not recognized.
var ErrInvalidSeverity = errors.New("invalid diagnostic severity")

type (
	// Severity represents discovery diagnostic severity.
	Severity string

	// InvalidSeverityError wraps ErrInvalidSeverity.
	InvalidSeverityError struct {
		Value Severity
	}

	// Diagnostic is a structured, non-fatal crawl problem returned to callers
	// for rendering.
	Diagnostic struct {
		Severity Severity
		// Code is a machine-readable identifier (e.g. "manifest_invalid").
		Code    string
		Message string
		URL     source.URL
		// Referrer is the source that required URL; empty for roots.
		Referrer source.URL
		Cause    error
	}
)

func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid diagnostic severity %q", e.Value)
}

func (e *InvalidSeverityError) Unwrap() error { return ErrInvalidSeverity }

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() (bool, []error) {
	switch s {
	case SeverityWarning, SeverityError:
		return true, nil
	default:
		return false, []error{&InvalidSeverityError{Value: s}}
	}
}

// String formats the diagnostic for one-line display.
func (d Diagnostic) String() string {
	if d.Referrer == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s (required by %s)", d.Severity, d.Message, d.Referrer)
}

// Diagnostics describes every entry without a manifest. An unreadable
// manifest is an error; an unreachable one is a warning, since a module
// without a manifest still installs with defaults.
func (r *Result) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, e := range r.Failures() {
		d := Diagnostic{
			Severity: SeverityWarning,
			Code:     CodeManifestUnavailable,
			Message:  e.Err.Error(),
			URL:      e.URL,
			Referrer: e.Referrer,
			Cause:    e.Err,
		}
		if errors.Is(e.Err, manifest.ErrInvalidManifest) {
			d.Severity = SeverityError
			d.Code = CodeManifestInvalid
		}
		out = append(out, d)
	}
	return out
}
