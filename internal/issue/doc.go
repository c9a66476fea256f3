// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// It defines an error type carrying remediation hints and a catalog of
// Markdown-formatted guidance that the CLI renders when a run stops on a
// fatal problem.
package issue
