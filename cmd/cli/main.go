package main

import (
	"context"
	"os"

	"github.com/ssh-box/sshbox/internal/buildinfo"
	"github.com/ssh-box/sshbox/internal/client/cli"
	"github.com/ssh-box/sshbox/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	app.Run(ctx)

}
