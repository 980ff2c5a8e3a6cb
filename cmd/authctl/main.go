// Command authctl runs maintenance tasks against the auth store.
package main

import (
	"os"

	"github.com/baechuer/natours-auth/internal/logger"
)

func main() {
	logger.Init()
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
