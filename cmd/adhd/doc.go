// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for adhd.
//
// Every command is built by a constructor taking the App composition root,
// so tests can run the command tree against injected writers and prompts.
package cmd
