package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/harryweb/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "harryweb: %v\n", err)
		os.Exit(1)
	}
}
