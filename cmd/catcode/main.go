package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alanmeadows/catcode/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !errors.Is(err, cli.ErrReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
