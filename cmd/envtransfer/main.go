package main

import (
	"os"

	"github.com/DemandBridge/environment-transfer-tool/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
