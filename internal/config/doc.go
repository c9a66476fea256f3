// SPDX-License-Identifier: MPL-2.0

// Package config handles adhd's own settings using Viper with CUE as the
// file format.
//
// Settings come from, in increasing precedence: built-in defaults, one CUE
// file (an explicit path, else adhd.cue in the project root, else
// config.cue in the user config directory) and ADHD_* environment
// variables (ADHD_DISCOVERY_CONCURRENCY=8). Files are validated against
// the embedded config_schema.cue before they are merged.
package config
