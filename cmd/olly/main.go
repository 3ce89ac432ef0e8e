// Command olly talks to Claude, Perplexity and Ollama through the provider
// gateway and manages the API keys it uses.
package main

import (
	"fmt"
	"os"
)

// version is set by build flags during release.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
