package api

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/travigo/positiontracker/pkg/config"
	"github.com/travigo/positiontracker/pkg/database"
	"github.com/travigo/positiontracker/pkg/realtime/vehicletracker"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Read only API over the stored vehicle positions",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}

					mongoInstance, err := database.Connect(cfg.MongoConnection, cfg.MongoDatabase)
					if err != nil {
						return err
					}
					defer mongoInstance.Disconnect(context.Background())

					webApp := NewApp(vehicletracker.NewMongoPositionStore(mongoInstance))

					ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
					defer stop()

					go func() {
						<-ctx.Done()
						log.Info().Msg("Shutting down web api")
						webApp.Shutdown()
					}()

					log.Info().Str("listen", c.String("listen")).Msg("Web api listening")

					return webApp.Listen(c.String("listen"))
				},
			},
		},
	}
}
