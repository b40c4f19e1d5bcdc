package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gowvp/annotator/internal/app"
	"github.com/gowvp/annotator/internal/conf"
)

var buildVersion = "0.0.1"

var (
	configPath = flag.String("conf", "./configs/config.toml", "config file path")
	debug      = flag.Bool("debug", false, "print logs to stdout")
)

func main() {
	flag.Parse()

	bc, err := conf.SetupConfig(*configPath)
	if err != nil {
		slog.Error("SetupConfig", "err", err)
		os.Exit(1)
	}
	bc.Debug = *debug || bc.Server.Debug
	bc.BuildVersion = buildVersion

	if err := app.Run(bc); err != nil {
		slog.Error("app exit", "err", err)
		os.Exit(1)
	}
}
