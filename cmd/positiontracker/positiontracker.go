package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/api"
	"github.com/travigo/positiontracker/pkg/realtime/vehicletracker"
	"github.com/urfave/cli/v2"
)

func main() {
	if os.Getenv("POSITIONTRACKER_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("POSITIONTRACKER_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "positiontracker",
		Description: "Reconciles per city realtime vehicle feeds into per trip position records",

		Commands: []*cli.Command{
			vehicletracker.RegisterCLI(),
			api.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
