// Package cli is the outlook-todo command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/outlook-todo/pkg/auth"
	"github.com/harrisonrobin/outlook-todo/pkg/config"
	"github.com/harrisonrobin/outlook-todo/pkg/gateway"
	"github.com/harrisonrobin/outlook-todo/pkg/graph"
	"github.com/harrisonrobin/outlook-todo/pkg/mailbox"
	"github.com/harrisonrobin/outlook-todo/pkg/model"
	"github.com/harrisonrobin/outlook-todo/pkg/store"
	"github.com/harrisonrobin/outlook-todo/pkg/todo"
)

// Exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitGraphAPI = 2
)

// NewGateway builds the mail gateway selected by cfg. Tests replace it.
var NewGateway = buildGateway

type options struct {
	configPath string
	envFile    string
	verbose    bool
}

// NewRootCmd returns the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "outlook-todo",
		Short: "Turn unread Outlook mail into a local to-do list",
		Long: `outlook-todo imports unread e-mails as tasks, keeps them in a local JSON file,
marks the source mail read when a task is done and exports the list to Markdown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/outlook-todo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newSyncCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newMarkDoneCmd(opts))
	rootCmd.AddCommand(newExportCmd(opts))
	rootCmd.AddCommand(newExportActiveCmd(opts))
	rootCmd.AddCommand(newAddCmd(opts))
	rootCmd.AddCommand(newNoteCmd(opts))
	rootCmd.AddCommand(newPushCalendarCmd(opts))
	rootCmd.AddCommand(newSetCalendarCmd(opts))
	rootCmd.AddCommand(newAuthGoogleCmd())
	rootCmd.AddCommand(newSecretCmd())

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		var apiErr *graph.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, "Graph API error:", err)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		return ExitGraphAPI
	}
	return ExitError
}

func (o *options) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath, o.envFile)
}

// app opens the task store. With withGateway the mail gateway is built too;
// when strict is false a gateway that cannot be built is replaced by one
// that reports why on every call.
func (o *options) app(ctx context.Context, withGateway, strict bool) (*todo.App, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var gw gateway.Gateway
	if withGateway {
		gw, err = NewGateway(ctx, cfg)
		if err != nil {
			if strict {
				return nil, nil, err
			}
			log.Printf("Warning: mail gateway unavailable: %v", err)
			gw = unavailable{err: err}
		}
	}
	return todo.NewApp(store.NewFileStore(cfg.Storage), gw), cfg, nil
}

func buildGateway(ctx context.Context, cfg *config.Config) (gateway.Gateway, error) {
	if err := cfg.ResolveSecrets(); err != nil {
		log.Printf("Warning: keyring lookup failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Gateway {
	case config.GatewayIMAP:
		return mailbox.NewClient(cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.Username, cfg.IMAP.Password, cfg.IMAP.TLS, cfg.IMAP.Mailbox), nil
	default:
		httpClient, err := auth.GraphHTTPClient(ctx, auth.GraphCredentials{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Graph.BaseURL == "" {
			return graph.NewClient(httpClient, cfg.Graph.Mailbox), nil
		}
		return graph.NewClientWithBaseURL(httpClient, cfg.Graph.BaseURL, cfg.Graph.Mailbox), nil
	}
}

// unavailable stands in for a gateway whose configuration is incomplete.
type unavailable struct {
	err error
}

func (u unavailable) FetchUnread(context.Context, int) ([]model.Message, error) {
	return nil, u.err
}

func (u unavailable) MarkRead(context.Context, string) error {
	return u.err
}
