// Command memwatch samples process memory, keeps heap snapshots and flags
// leak patterns. It can drive a terminal dashboard, a headless export run or
// a websocket stream.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
