package main

import (
	"github.com/Cleo-Systems/tbphylo/internal/service"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP and record runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.NewHTTPService(c.config, c.logger)
			if err != nil {
				return err
			}
			return svc.Start(cmd.Context())
		},
	}
}
