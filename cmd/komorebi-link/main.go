// File: cmd/komorebi-link/main.go
// Author: momentics <momentics@gmail.com>

package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
