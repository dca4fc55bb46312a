package main

import (
	"os"

	"github.com/voicevault/voicevault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
