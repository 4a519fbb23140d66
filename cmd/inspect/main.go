// Command inspect reads a gym-chat badger store offline and drives the admin service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/urfave/cli/v3"
)

type flags struct {
	dbPath string
	addr   string
	token  string
}

func main() {
	f := &flags{}
	app := &cli.Command{
		Name:  "inspect",
		Usage: "Inspect conversations and operate a running gym-chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "db",
				Usage:       "path to the badger directory",
				Sources:     cli.EnvVars("BADGER_FILEPATH"),
				Value:       "./data/badger",
				Destination: &f.dbPath,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "admin gRPC address",
				Sources:     cli.EnvVars("ADMIN_ADDR"),
				Value:       "localhost:9090",
				Destination: &f.addr,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "admin bearer token",
				Sources:     cli.EnvVars("ADMIN_TOKEN"),
				Destination: &f.token,
			},
		},
		Commands: []*cli.Command{
			conversationsCmd(f),
			messagesCmd(f),
			rawCmd(f),
			sweepCmd(f),
			broadcastCmd(f),
			presenceCmd(f),
			unreadCmd(f),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("inspect: %v", err))
		os.Exit(1)
	}
}
