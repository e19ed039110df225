package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/opensurvey/keyvault/cmd/app/commands"
	"github.com/opensurvey/keyvault/internal/app"
	"github.com/opensurvey/keyvault/internal/config"
	custodianService "github.com/opensurvey/keyvault/internal/custodian/service"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-custodian-shares",
			Usage: "Generate a platform escrow key and split it into custodian shares",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "threshold",
					Aliases: []string{"k"},
					Value:   3,
					Usage:   "Number of shares required to reconstruct the key",
				},
				&cli.IntFlag{
					Name:    "shares",
					Aliases: []string{"n"},
					Value:   5,
					Usage:   "Total number of shares to produce",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateCustodianShares(
					commands.DefaultIO().Writer,
					custodianService.NewShamirSplitter(),
					int(cmd.Int("threshold")),
					int(cmd.Int("shares")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "create-org-master-key",
			Usage: "Mint the first master key version for an organization",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "org-id",
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "Organization ID (UUID)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				orgMasterUseCase, err := container.OrgMasterUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateOrgMasterKey(
					ctx,
					orgMasterUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("org-id"),
				)
			},
		},
		{
			Name:  "rotate-org-master-key",
			Usage: "Rotate an organization's master key and rewrap covered surveys",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "org-id",
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "Organization ID (UUID)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				orgMasterUseCase, err := container.OrgMasterUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotateOrgMasterKey(
					ctx,
					orgMasterUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("org-id"),
				)
			},
		},
	}
}
