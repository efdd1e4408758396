package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/golovatskygroup/azdo-lens/internal/azdo"
)

func newQueryCommand(g *globalFlags) *cobra.Command {
	var savedID string
	cmd := &cobra.Command{
		Use:   "query [flags] <wiql>",
		Short: "Run a WIQL query and print matching work items",
		Long: `Query runs a WIQL query scoped to the configured project and prints the
work item ids and URLs as JSON. With --id it runs a saved query instead.

Example:
  azdo-lens query "SELECT [System.Id] FROM WorkItems WHERE [System.State] = 'Active'"
  azdo-lens query --id 8a8c8212-15ca-41ed-97aa-1d6fbfbcd581`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if savedID == "" && len(args) == 0 {
				return errors.New("a WIQL query or --id is required")
			}
			if savedID != "" && len(args) > 0 {
				return errors.New("pass either a WIQL query or --id, not both")
			}

			logger, err := g.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			conn, err := g.connect(logger)
			if err != nil {
				return err
			}

			var res azdo.QueryResult
			if savedID != "" {
				res, err = conn.ListItemsBySavedQuery(cmd.Context(), savedID)
			} else {
				res, err = conn.ListItems(cmd.Context(), strings.Join(args, " "))
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&savedID, "id", "", "id of a saved query to run")
	return cmd
}
