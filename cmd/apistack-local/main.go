// Command apistack-local inspects and emulates the API stack on a developer machine.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "apistack-local: %v\n", err)
		return 1
	}
	return 0
}
