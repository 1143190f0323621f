package main

import (
	"os"

	"github.com/jmuozan/vid2cloud/cmd/vid2cloud/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
