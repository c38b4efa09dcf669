package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alfredjeanlab/boardsync/internal/config"
	"github.com/alfredjeanlab/boardsync/internal/ui"
	"github.com/spf13/cobra"
)

var (
	apiURL      string
	token       string
	actor       string
	transport   string
	profileName string
	profilePath string
	jsonOutput  bool
	debug       bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:          "boardctl <command>",
	Short:        "Live client for collaborative task boards",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

// setup resolves configuration in order of precedence: flags, environment,
// profile, defaults.
func setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	ui.Init()

	c, err := config.Load()
	if err != nil {
		return err
	}

	path := profilePath
	if path == "" {
		if path, err = config.DefaultProfilePath(); err != nil {
			return err
		}
	}
	profiles, err := config.LoadProfiles(path)
	if err != nil {
		return err
	}
	if prof, ok := profiles.Lookup(profileName); ok {
		if err := c.ApplyProfile(prof); err != nil {
			return fmt.Errorf("profile %q: %w", profileName, err)
		}
	} else if profileName != "" {
		return fmt.Errorf("profile %q not found in %s", profileName, path)
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		c.APIURL = apiURL
	}
	if flags.Changed("token") {
		c.Token = token
	}
	if flags.Changed("actor") {
		c.Actor = actor
	}
	if flags.Changed("transport") {
		c.Transport = transport
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "board service URL (default $BOARDSYNC_API_URL or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token for the API and push channel")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "local user id, used to hide echoes of your own moves")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "push channel transport (websocket, nats or redis)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "named profile to use (default: the active profile)")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profiles", "", "profile file (default ~/.config/boardsync/profiles.toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "board", Title: "Board:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Board
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(stagesCmd)

	// System
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
