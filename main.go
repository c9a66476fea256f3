// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/adhd-framework/adhd/cmd/adhd"

func main() {
	cmd.Execute()
}
