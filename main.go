// File: main.go
package main

import (
	"github.com/xkilldash9x/thumbwatch/cmd"
)

// main is the entry point for the thumbwatch CLI.
func main() {
	cmd.Execute()
}
