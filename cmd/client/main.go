package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/nextshape/internal/buildinfo"
	"github.com/dmitrijs2005/nextshape/internal/client/cli"
	"github.com/dmitrijs2005/nextshape/internal/client/config"
)

func main() {

	buildinfo.Print(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
