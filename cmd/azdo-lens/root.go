package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/golovatskygroup/azdo-lens/internal/azdo"
	"github.com/golovatskygroup/azdo-lens/internal/config"
	azerrors "github.com/golovatskygroup/azdo-lens/internal/errors"
	"github.com/golovatskygroup/azdo-lens/internal/httpcache"
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCommand(version, commit, date string) *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "azdo-lens",
		Short: "Query Azure DevOps work items with WIQL",
		Long: `azdo-lens runs WIQL work item queries against Azure DevOps Services or
Azure DevOps Server and prints the matching work item references as JSON.

Settings come from a YAML file (--config) and fall back to the AZURE_DEVOPS_*
environment variables. Supported auth types are pat, ntlm, basic and entra.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a YAML settings file")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newQueryCommand(g))
	rootCmd.AddCommand(newCheckCommand(g))

	return rootCmd
}

func (g *globalFlags) settings() (config.Settings, error) {
	env := config.SettingsFromEnv()
	if g.configPath == "" {
		return env, nil
	}
	s, err := config.LoadSettingsFile(g.configPath)
	if err != nil {
		return config.Settings{}, err
	}
	return s.WithFallback(env), nil
}

func (g *globalFlags) logger() (*zap.SugaredLogger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if g.verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return l.Sugar(), nil
}

func (g *globalFlags) connect(logger *zap.SugaredLogger) (*azdo.Connection, error) {
	s, err := g.settings()
	if err != nil {
		return nil, err
	}
	return azdo.Connect(s, azdo.WithLogger(logger), azdo.WithCache(httpcache.ConfigFromEnv()))
}

func errorHint(err error) string {
	switch azerrors.KindOf(err) {
	case azerrors.KindMissingCredential:
		return "set the credential for the selected auth type (AZURE_DEVOPS_PERSONAL_ACCESS_TOKEN, or AZURE_DEVOPS_USERNAME and AZURE_DEVOPS_PASSWORD)"
	case azerrors.KindUnsupportedAuthMode:
		return "AZURE_DEVOPS_AUTH_TYPE must be one of pat, ntlm, basic or entra"
	case azerrors.KindUnsupportedCombination:
		return "entra is for Azure DevOps Services only; ntlm and basic are for Azure DevOps Server only"
	case azerrors.KindInvalidSetting:
		return "check AZURE_DEVOPS_ORG_URL and AZURE_DEVOPS_PROJECT"
	case azerrors.KindCredentialAcquisition:
		return "sign in with the Azure CLI (az login) or configure a managed identity or service principal"
	default:
		return ""
	}
}
