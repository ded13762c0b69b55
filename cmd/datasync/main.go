package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/jolt/datasync/pkg/log"

	// Builtin plugins
	_ "github.com/srand/jolt/datasync/pkg/plugins/jsonfilereader"
	_ "github.com/srand/jolt/datasync/pkg/plugins/sqlitewriter"
	_ "github.com/srand/jolt/datasync/pkg/plugins/streamreader"
	_ "github.com/srand/jolt/datasync/pkg/plugins/streamwriter"
	_ "github.com/srand/jolt/datasync/pkg/plugins/txtfilewriter"
)

var rootCmd = &cobra.Command{
	Use:   "datasync",
	Short: "Data synchronization task group engine",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("datasync")
		viper.AutomaticEnv()

		if file, _ := cmd.Flags().GetString("config"); file != "" {
			viper.SetConfigFile(file)
		} else {
			viper.SetConfigName("datasync")
			viper.AddConfigPath("/etc/datasync/")
			viper.AddConfigPath("$HOME/.config/datasync")
			viper.AddConfigPath(".")
		}

		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			panic(err)
		}

		switch {
		case verbosity >= 2:
			log.SetLevel(log.TraceLevel)
		case verbosity >= 1:
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Reads the job file. A missing file is only an error when the caller
// needs one.
func readConfig(required bool) error {
	err := viper.ReadInConfig()
	if err == nil {
		log.Debug("Using configuration file", viper.ConfigFileUsed())
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); ok && !required {
		return nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Job configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbosity (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
