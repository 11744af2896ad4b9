package main

import (
	"fmt"
	"os"

	"weatherbot/database"
	"weatherbot/state"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "weatherbot [config]",
	Short:        "Conversational Telegram bot for weather forecasts",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, args); err != nil {
			return err
		}
		return runBot()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [config]",
	Short: "Create the tables and seed the city directory, then exit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd, args); err != nil {
			return err
		}
		if err := setupLogger(); err != nil {
			return err
		}
		if err := setupDatabase(); err != nil {
			return err
		}

		version, dirty, err := database.MigrationVersion(state.State.Database, state.State.Config.Database["type"])
		if err != nil {
			return err
		}
		state.State.Logger.Info("database is up to date",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
		return nil
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a config file with every option set to its default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := state.State.Config
		cfg.SetDefaults()
		if len(args) > 0 {
			cfg.Path = args[0]
		}
		if _, err := os.Stat(cfg.Path); err == nil {
			return fmt.Errorf("%s already exists", cfg.Path)
		}
		if err := cfg.SaveConfig(); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", cfg.Path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of weatherbot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("weatherbot version %s\n", state.WEATHERBOT_VERSION)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (default config.yaml)")
	rootCmd.AddCommand(migrateCmd, initConfigCmd, versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg := state.State.Config
	cfg.SetDefaults()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg.Path = path
	}
	if len(args) > 0 {
		cfg.Path = args[0]
	}

	if err := cfg.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load config file: %s", err)
	}
	return nil
}
