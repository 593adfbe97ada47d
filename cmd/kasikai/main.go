// Command kasikai is the operator CLI for the booking service: run the
// daemon in the foreground, trigger one-shot ingestion passes, and inspect
// run history and configuration.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
