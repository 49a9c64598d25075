package main

import (
	"os"

	"github.com/hiring-bias-lab/resume-eval/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
