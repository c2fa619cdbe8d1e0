// Armctl - command line control and monitoring for serial arm controllers.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
