package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/alfredjeanlab/boardsync/internal/config"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Manage named board service profiles",
	GroupID: "system",
	// Profiles are local file operations; skip config resolution so a broken
	// active profile can still be fixed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

func resolveProfilePath() (string, error) {
	if profilePath != "" {
		return profilePath, nil
	}
	return config.DefaultProfilePath()
}

func loadProfiles() (string, config.Profiles, error) {
	path, err := resolveProfilePath()
	if err != nil {
		return "", config.Profiles{}, err
	}
	p, err := config.LoadProfiles(path)
	return path, p, err
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile from the global flags",
	Long: `Stores --api-url, --token, --actor and --transport (plus --nats-url and
--redis-addr) under a name. The first profile added becomes active.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		natsURL, _ := cmd.Flags().GetString("nats-url")
		redisAddr, _ := cmd.Flags().GetString("redis-addr")

		prof := config.Profile{
			APIURL:    apiURL,
			Token:     token,
			Actor:     actor,
			Transport: transport,
			NATSURL:   natsURL,
			RedisAddr: redisAddr,
		}
		if prof.APIURL == "" {
			return fmt.Errorf("--api-url is required")
		}
		probe := &config.Config{APIURL: prof.APIURL, Transport: prof.Transport}
		if probe.Transport == "" {
			probe.Transport = config.TransportWebSocket
		}
		if err := probe.Validate(); err != nil {
			return err
		}

		path, p, err := loadProfiles()
		if err != nil {
			return err
		}
		p.Profiles[name] = prof
		if p.Active == "" {
			p.Active = name
		}
		if err := config.SaveProfiles(path, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved (%s)\n", name, prof.APIURL)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, p, err := loadProfiles()
		if err != nil {
			return err
		}
		if len(p.Profiles) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no profiles configured")
			return nil
		}
		names := make([]string, 0, len(p.Profiles))
		for name := range p.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tAPI URL\tTRANSPORT\tTOKEN")
		for _, name := range names {
			prof := p.Profiles[name]
			marker := "  "
			if name == p.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, name, prof.APIURL, prof.Transport, maskToken(prof.Token))
		}
		return w.Flush()
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, p, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := p.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		p.Active = args[0]
		if err := config.SaveProfiles(path, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active profile set to %q\n", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, p, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := p.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		delete(p.Profiles, args[0])
		if p.Active == args[0] {
			p.Active = ""
		}
		if err := config.SaveProfiles(path, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "profile %q removed\n", args[0])
		return nil
	},
}

func maskToken(tok string) string {
	if len(tok) > 8 {
		return tok[:8] + "..."
	}
	return tok
}

func init() {
	profileAddCmd.Flags().String("nats-url", "", "NATS server URL for the nats transport")
	profileAddCmd.Flags().String("redis-addr", "", "Redis address for the redis transport")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileRemoveCmd)
}
