// Package cli wires configuration, storage and the order lifecycle into the
// orderflow command tree.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "orderflow",
	Short:         "Persisted order lifecycle state machine",
	Long:          `orderflow drives orders through SUBMITTED, PAID, FULFILLED and CANCELLED, persisting every transition.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./orderflow.yaml)")
	flags.BoolP("verbose", "v", false, "enable debug logging")
	flags.String("log-format", "", "log format: text or json")
	flags.String("driver", "", "database driver: sqlite, postgres or memory")
	flags.String("db", "", "sqlite database path")
	flags.String("dsn", "", "postgres connection string")

	bindFlag("verbose", "verbose")
	bindFlag("log.format", "log-format")
	bindFlag("database.driver", "driver")
	bindFlag("database.path", "db")
	bindFlag("database.dsn", "dsn")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("orderflow")
	}

	viper.SetEnvPrefix("ORDERFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			cobra.CheckErr(fmt.Errorf("reading config: %w", err))
		}
	}
}
