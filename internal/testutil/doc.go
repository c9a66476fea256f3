// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Besides the Must* filesystem and environment helpers it builds module
// trees (WriteModule, ManifestYAML, RootYAML) for registry, materializer and
// end-to-end tests.
package testutil
