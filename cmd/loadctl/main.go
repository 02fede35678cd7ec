package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "loadctl",
		Usage: "administer the load consolidation database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "driver", EnvVars: []string{"DATABASE_DRIVER"}, Usage: "postgres, mysql or sqlite"},
			&cli.StringFlag{Name: "database-url", EnvVars: []string{"DATABASE_URL"}, Usage: "connection string"},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			userCommand(),
			catalogCommand(),
			manifestCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("loadctl")
	}
}
