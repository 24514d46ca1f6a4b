// Command aircv finds templates in screenshots from the command line.
package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lkarlslund/aircv/pkg/config"
	"github.com/lkarlslund/aircv/pkg/engine"
)

var (
	configPath string
	debug      bool
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "aircv",
	Short:         "Template matching for device screenshots",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if debug {
			cfg.Debug = true
		}
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if cfg.Debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "aircv.json", "Configuration file, defaults are used when it does not exist")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log every matching step")
}

func service() (*engine.Service, error) {
	return engine.New(cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("aircv failed")
		os.Exit(1)
	}
}
