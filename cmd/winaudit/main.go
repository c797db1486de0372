package main

import (
	"os"

	"github.com/osiriscare/winaudit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
