package main

import (
	"os"

	"github.com/monadicstack/calculator/cli"
)

func main() {
	if err := cli.NewCalculator().Command().Execute(); err != nil {
		os.Exit(1)
	}
}
