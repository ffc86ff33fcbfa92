package main

import (
	"os"

	"github.com/solatis/itemfilter/cmd/itemfilter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
