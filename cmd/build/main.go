package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/skald-labs/skald"
	"github.com/skald-labs/skald/internal/cli"
)

func main() {
	configPath := flag.String("config", "skald.yaml", "project config file")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	output := cli.NewOutput()
	if *noColor {
		output.DisableColors()
	}

	output.PrintHeader("Skald Build")

	project, err := skald.LoadProject(*configPath)
	if err != nil {
		output.PrintError("Invalid project config: %v", err)
		os.Exit(1)
	}

	plugin, err := skald.New(project)
	if err != nil {
		output.PrintError("%v", err)
		os.Exit(1)
	}
	defer plugin.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output.PrintStep("Building %s", project.AppEntry)

	if err := plugin.Build(ctx); err != nil {
		output.PrintError("%v", err)
		os.Exit(1)
	}

	output.PrintSuccess("Client and server bundles built")
	output.PrintFile("dist/index.html")
	output.PrintFile("dist/server.bundle.js")
	output.PrintFile("dist/manifest.json")
	output.PrintDone("Build completed successfully")
}
