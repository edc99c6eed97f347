package main

import (
	"os"

	"github.com/compliance-forge/docuflow/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
