// The main package for the irdocs executable.
package main

import (
	"github.com/JakeFAU/ir-disclosure-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
