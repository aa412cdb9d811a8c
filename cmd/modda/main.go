package main

import (
	"os"

	"github.com/modda-mods/modda/cmd/modda/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
