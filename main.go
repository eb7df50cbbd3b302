package main

import (
	"os"

	"github.com/scan-io-git/sarifer/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
