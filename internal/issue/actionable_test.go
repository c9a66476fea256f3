// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load root manifest"},
			expected: "failed to load root manifest",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load root manifest", Resource: "./init.yaml"},
			expected: "failed to load root manifest: ./init.yaml",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "parse config", Cause: errors.New("syntax error at line 5")},
			expected: "failed to parse config: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "load root manifest",
				Resource:  "./init.yaml",
				Cause:     errors.New("file not found"),
			},
			expected: "failed to load root manifest: ./init.yaml: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ActionableError{Operation: "test", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		verbose  bool
		contains []string
		excludes []string
	}{
		{
			name: "suggestions",
			err: &ActionableError{
				Operation:   "load root manifest",
				Resource:    "./init.yaml",
				Suggestions: []string{"Create init.yaml", "Check file permissions"},
			},
			contains: []string{"failed to load root manifest", "• Create init.yaml", "• Check file permissions"},
		},
		{
			name: "non-verbose hides chain",
			err: &ActionableError{
				Operation: "clone module",
				Cause:     errors.New("outer"),
			},
			excludes: []string{"Error chain:"},
		},
		{
			name: "verbose shows chain",
			err: &ActionableError{
				Operation: "clone module",
				Cause:     errors.Join(errors.New("network unreachable")),
			},
			verbose:  true,
			contains: []string{"Error chain:", "1. network unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Format(tt.verbose)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Format() = %q, want it to contain %q", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Format() = %q, should not contain %q", got, unwanted)
				}
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("load root manifest").
		WithResource("init.yaml").
		WithSuggestion("first").
		WithSuggestion("second").
		WithIssue(RootManifestNotFoundId).
		Wrap(cause).
		Build()

	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Operation != "load root manifest" || ae.Resource != "init.yaml" {
		t.Errorf("unexpected operation/resource: %q %q", ae.Operation, ae.Resource)
	}
	if len(ae.Suggestions) != 2 || !ae.HasSuggestions() {
		t.Errorf("Suggestions = %v", ae.Suggestions)
	}
	if ae.IssueID != RootManifestNotFoundId {
		t.Errorf("IssueID = %d", ae.IssueID)
	}
	if !errors.Is(ae, cause) {
		t.Error("cause must be reachable through errors.Is")
	}
}

func TestErrorContext_BuildErrorWithoutOperation(t *testing.T) {
	if err := NewErrorContext().WithResource("x").BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want nil", err)
	}
}

func TestWrapHelpers(t *testing.T) {
	if WrapWithOperation(nil, "x") != nil {
		t.Error("WrapWithOperation(nil) should be nil")
	}
	if WrapWithContext(nil, "x", "y") != nil {
		t.Error("WrapWithContext(nil) should be nil")
	}

	err := WrapWithContext(errors.New("denied"), "write report", "report.toml")
	if got := err.Error(); got != "failed to write report: report.toml: denied" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIssueOf(t *testing.T) {
	err := NewErrorContext().WithOperation("x").WithIssue(DependencyCycleId).BuildError()
	if got := IssueOf(err); got == nil || got.Id() != DependencyCycleId {
		t.Errorf("IssueOf() = %v", got)
	}
	if IssueOf(errors.New("plain")) != nil {
		t.Error("IssueOf(plain error) should be nil")
	}
	if IssueOf(WrapWithOperation(errors.New("x"), "y")) != nil {
		t.Error("IssueOf without issue ID should be nil")
	}
}
