package cli

import (
	"bufio"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/outlook-todo/pkg/auth"
	"github.com/harrisonrobin/outlook-todo/pkg/colors"
	"github.com/harrisonrobin/outlook-todo/pkg/config"
	"github.com/harrisonrobin/outlook-todo/pkg/credential"
	"github.com/harrisonrobin/outlook-todo/pkg/google"
	"github.com/harrisonrobin/outlook-todo/pkg/index"
)

func newPushCalendarCmd(opts *options) *cobra.Command {
	var calendarName string

	cmd := &cobra.Command{
		Use:   "push-calendar",
		Short: "Mirror scheduled tasks into a Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cfg, err := opts.app(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			if calendarName == "" {
				calendarName = cfg.Calendar
			}
			tasks, err := app.List()
			if err != nil {
				return err
			}

			xdgConfigBase, err := auth.GetXdgHome()
			if err != nil {
				return fmt.Errorf("could not find path to configuration directory: %w", err)
			}
			evtIndex, err := index.NewEventIndex(filepath.Join(xdgConfigBase, index.FileName))
			if err != nil {
				log.Printf("Warning: failed to initialize event index: %v", err)
				evtIndex = nil
			}
			cache, err := colors.NewColorCache(filepath.Join(xdgConfigBase, colors.FileName))
			if err != nil {
				log.Printf("Warning: could not load color cache: %v", err)
				cache = nil
			}

			client, err := google.NewClient(cmd.Context(), calendarName, evtIndex, cache)
			if err != nil {
				return err
			}
			res := client.Push(cmd.Context(), tasks)

			if evtIndex != nil {
				if err := evtIndex.Save(); err != nil {
					log.Printf("Warning: failed to save event index: %v", err)
				}
			}
			if cache != nil {
				if err := cache.Save(); err != nil {
					log.Printf("Warning: failed to save color cache: %v", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Calendar %q: %d created, %d updated, %d unchanged, %d skipped, %d deleted, %d failed\n",
				calendarName, res.Created, res.Updated, res.Unchanged, res.Skipped, res.Deleted, res.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&calendarName, "calendar", "", "Google Calendar name to push to (overrides config)")
	return cmd
}

func newSetCalendarCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the default Google Calendar name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveCalendar(opts.configPath, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
			return nil
		},
	}
}

func newAuthGoogleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-google",
		Short: "Authenticate with Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenFile, err := auth.ResetGoogleToken()
			if err != nil {
				return err
			}
			if _, err := auth.CalendarService(cmd.Context()); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", tokenFile)
			return nil
		},
	}
}

// secretKeys maps the names accepted on the command line to keyring keys.
var secretKeys = map[string]string{
	"ms-client-secret": credential.GraphClientSecret,
	"imap-password":    credential.IMAPPassword,
}

func secretKey(name string) (string, error) {
	if key, ok := secretKeys[name]; ok {
		return key, nil
	}
	names := make([]string, 0, len(secretKeys))
	for n := range secretKeys {
		names = append(names, n)
	}
	sort.Strings(names)
	return "", fmt.Errorf("unknown secret %q (expected one of %s)", name, strings.Join(names, ", "))
}

func newSecretCmd() *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
	}

	setCmd := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret (read from stdin when no value is given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(args[0])
			if err != nil {
				return err
			}
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s: ", args[0])
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading secret: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return fmt.Errorf("secret %s must not be empty", args[0])
			}
			if err := credential.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in the keyring\n", args[0])
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretKey(args[0])
			if err != nil {
				return err
			}
			if err := credential.Delete(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the keyring\n", args[0])
			return nil
		},
	}

	secretCmd.AddCommand(setCmd)
	secretCmd.AddCommand(deleteCmd)
	return secretCmd
}
