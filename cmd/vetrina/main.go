// Command vetrina is the hybrid product search engine and shop assistant.
package main

import (
	"os"

	"github.com/custodia-labs/vetrina/internal/adapters/driving/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetServiceFactory(buildServices)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
