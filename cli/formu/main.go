package main

import (
	"os"

	formucmder "github.com/papercomputeco/formu/cmd/formu"
	"github.com/papercomputeco/formu/pkg/cliui"
)

func main() {
	cmd := formucmder.NewFormuCmd()
	if err := cmd.Execute(); err != nil {
		cliui.Failure(os.Stderr, err.Error())
		os.Exit(1)
	}
}
