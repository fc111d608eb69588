package main

import (
	"os"

	"github.com/courierops/dispatchd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
