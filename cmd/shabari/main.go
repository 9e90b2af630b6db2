package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shabari/shabari/cmd/shabari/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, commands.ErrThreshold) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
