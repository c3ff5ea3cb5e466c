// Command sequencectl runs one-off operator tasks against the sequence store:
// schema migration, manual scheduler ticks and data import.
package main

import (
	"os"

	"whatsapp-sequencer/internal/logging"
)

func main() {
	defer logging.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
