package main

import (
	"fmt"
	"os"

	"github.com/virtushot/photoshoot-api/cmd/virtushot/cli"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// @title                       VirtuShot Photoshoot API
// @version                     1.0
// @description                 Credit-gated AI product photography.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 JWT or API key as "Bearer <credential>".
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
