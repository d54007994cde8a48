package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ztnc/ztnc/pkg/cli"
	"github.com/ztnc/ztnc/pkg/settings"
)

func newSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage persistent settings",
		Long: `Manage persistent settings stored in ~/.ztnc/settings.yaml.

Settings:
  api_url         Controller management API (default http://127.0.0.1:9993)
  state_dir       Controller home directory (holds the auth token and cache)
  token_file      Auth token file (default <state_dir>/authtoken.secret)
  cache_path      Alias cache (default <state_dir>/ztnc.cache)
  audit_log_path  Audit log (default ~/.ztnc/audit.log)

ZTNC_API_URL, ZTNC_STATE_DIR, ZTNC_TOKEN_FILE, ZTNC_CACHE_PATH and
ZTNC_AUDIT_LOG override the file, as do KEY=value lines in ~/.ztnc/env.

Examples:
  ztnc settings show
  ztnc settings set state_dir /var/lib/zerotier-one
  ztnc settings set api_url http://127.0.0.1:9993
  ztnc settings clear`,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings file: %s\n\n", settings.DefaultSettingsPath())

			t := cli.NewTableTo(out, "SETTING", "VALUE")
			for _, key := range settings.Keys {
				value, _ := s.Get(key)
				if !s.IsSet(key) {
					value += " " + cli.Dim("(default)")
				}
				t.Row(key, value)
			}
			t.Flush()
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <setting> <value>",
		Short: "Set a setting value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setting, value := args[0], args[1]

			s, err := settings.LoadFrom(settings.DefaultSettingsPath())
			if err != nil {
				s = &settings.Settings{}
			}
			if err := s.Set(setting, value); err != nil {
				return err
			}
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving settings: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", setting, value)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <setting>",
		Short: "Get an effective setting value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				return fmt.Errorf("loading settings: %w", err)
			}
			value, err := s.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &settings.Settings{}
			if err := s.Save(); err != nil {
				return fmt.Errorf("saving settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All settings cleared.")
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show settings file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), settings.DefaultSettingsPath())
		},
	}

	settingsCmd.AddCommand(showCmd, setCmd, getCmd, clearCmd, pathCmd)
	return settingsCmd
}
