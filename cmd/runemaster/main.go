// Command runemaster composes, stores and runs data pipelines from the
// command line or over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
