// Package cmd provides the command-line interface for tmplview.
//
// Configuration sources, in precedence order:
//  1. Command-line flags (--port, --config, ...)
//  2. Environment variables with the TMPLVIEW_ prefix
//     (TMPLVIEW_SERVER_PORT, TMPLVIEW_PREVIEW_DEBOUNCE_MS, ...)
//  3. The .tmplview.yml configuration file
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "tmplview",
	Short: "Live preview for Go templates",
	Long: `tmplview renders Go templates against JSON context documents and keeps
a live preview in sync while you edit.

It watches template and context files, coalesces rapid edits into single
re-renders, maps render errors back to their source locations in either
document, and falls back to the last successful output when a render
fails.

Quick start:
  tmplview serve                          Start the preview server
  tmplview render page.html -c data.json  Render once to stdout`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tmplview.yml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TMPLVIEW_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tmplview")
	}

	viper.SetEnvPrefix("TMPLVIEW")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
