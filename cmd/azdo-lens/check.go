package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/azdo-lens/internal/auth"
	"github.com/golovatskygroup/azdo-lens/internal/config"
)

func newCheckCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate settings without contacting Azure DevOps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.settings()
			if err != nil {
				return err
			}
			res, err := config.Resolve(s)
			if err != nil {
				return err
			}
			// Building the handler catches combinations Resolve leaves to the factory.
			h, err := auth.NewHandler(res.Auth, res.Topology)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "endpoint: %s\n", res.Topology.EffectiveEndpoint())
			fmt.Fprintf(out, "project:  %s\n", res.Project)
			fmt.Fprintf(out, "auth:     %s\n", auth.Describe(h))
			if res.Topology.SelfHosted {
				fmt.Fprintln(out, "instance: self-hosted")
			} else {
				fmt.Fprintln(out, "instance: cloud")
			}
			return nil
		},
	}
}
