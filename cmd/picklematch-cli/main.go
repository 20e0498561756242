// Package main is the entry point for picklematch-cli, a small client for
// inspecting and following the auth state of a running server.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
