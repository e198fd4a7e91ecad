// Command chunkdump inspects chunked arrays: it lists chunk directory
// entries, reads sections, and generates synthetic files to test against.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
