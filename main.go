package main

import (
	"os"

	"github.com/yeti47/securitycam/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
