// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI
// flags, environment variables prefixed with ROSTERKIT, or config.yaml
// (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ROSTERKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/rosterkit", "$HOME/.rosterkit", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "rosterkit",
		Short: "Load, filter and query membership datasets from the command line",
		Long: `Load, filter and query membership datasets from the command line.

Rosterkit decodes a columnar membership dataset, derives computed fields,
applies regional access filtering for the supplied identity tokens, caches
the result, and answers ad-hoc filter/sort/search/aggregation queries.`,
	}
}
