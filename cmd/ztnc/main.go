// Ztnc - command-line front end for a local ZeroTier network controller
//
// Networks and members are selected by controller ID (-n, -z) or by a
// local alias given as the positional argument. A compound alias
// "network-alias:member-alias" selects both.
//
// Exactly one action flag runs per invocation; its result is printed as
// indented JSON.
//
// Examples:
//
//	ztnc --add-network                                # controller picks the ID suffix
//	ztnc --set-alias lab -n 8056c2e21c000001          # alias a network (renames it remotely)
//	ztnc --set-alias bob -z a1b2c3d4e5 lab            # alias a member of network "lab"
//	ztnc --set-network-ip-pool 10.0.0.0/24 lab
//	ztnc --authorize-member lab:bob
//	ztnc --set-member-ip 10.0.0.5 lab:bob
//	ztnc --list-members lab
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ztnc/ztnc/pkg/audit"
	"github.com/ztnc/ztnc/pkg/cli"
	"github.com/ztnc/ztnc/pkg/controller"
	"github.com/ztnc/ztnc/pkg/settings"
	"github.com/ztnc/ztnc/pkg/store"
	"github.com/ztnc/ztnc/pkg/util"
	"github.com/ztnc/ztnc/pkg/version"
	"github.com/ztnc/ztnc/pkg/ztnc"
)

// Audit log rotation.
const (
	auditMaxSizeMB  = 10
	auditMaxBackups = 10
)

var errNoAction = errors.New("no action given")

// options carries flag values and loaded settings for one invocation.
type options struct {
	// Object selectors
	networkID string // -n, --network
	memberID  string // -z, --member

	verbose bool

	// Action arguments
	setAlias      string
	networkIPPool string
	memberIP      string

	settings *settings.Settings
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:               "ztnc [flags] [alias | network-alias:member-alias]",
		Short:             "ZeroTier network controller CLI",
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		Long: `Ztnc manages a local ZeroTier controller's networks and members and keeps
human-friendly aliases for their identifiers.

Select the object with -n/-z or an alias, then pick one action:

  ztnc [alias] --<action> [-n <network>] [-z <member>]`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Set log level: quiet by default, verbose on -v
			if opts.verbose {
				util.SetLogLevel("debug")
			} else {
				util.SetLogLevel("warn")
			}

			s, err := settings.Load()
			if err != nil {
				util.Warnf("Could not load settings: %v", err)
				s = &settings.Settings{}
				s.ApplyEnv()
			}
			opts.settings = s
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.networkID, "network", "n", "", "Network ID (16 characters; 6-character suffix with --add-network)")
	flags.StringVarP(&opts.memberID, "member", "z", "", "Member ID (10 characters)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	registerActions(root, opts)

	root.AddGroup(&cobra.Group{ID: "meta", Title: "Configuration & Meta:"})
	for _, cmd := range []*cobra.Command{newSettingsCmd(), newAuditCmd(opts), newVersionCmd()} {
		cmd.GroupID = "meta"
		root.AddCommand(cmd)
	}
	return root
}

// run executes the selected action. The alias cache is saved when the
// action returns, whether or not it succeeded.
func (o *options) run(cmd *cobra.Command, args []string) (err error) {
	act := selectedAction(cmd, o)
	if act == nil {
		cmd.Usage()
		return errNoAction
	}
	ctx := cmd.Context()

	cachePath := o.settings.GetCachePath()
	cache := store.Load(cachePath)
	defer func() {
		if saveErr := store.Save(cachePath, cache); saveErr != nil {
			if err == nil {
				err = fmt.Errorf("saving alias cache: %w", saveErr)
			} else {
				util.Warnf("Could not save alias cache: %v", saveErr)
			}
		}
	}()

	sess, err := o.connect(ctx, cache)
	if err != nil {
		return err
	}

	if logger, err := ztnc.InitAuditLogger(o.settings.GetAuditLogPath(), auditMaxSizeMB, auditMaxBackups); err != nil {
		util.Warnf("Could not initialize audit logging: %v", err)
	} else {
		defer func() {
			audit.SetDefaultLogger(nil)
			logger.Close()
		}()
	}

	if len(args) == 1 {
		if err := o.resolveTarget(sess, args[0]); err != nil {
			return err
		}
	}

	out, err := act.run(ctx, sess, o)
	if err != nil {
		return err
	}
	return cli.PrintJSON(cmd.OutOrStdout(), out)
}

// connect reads the auth token, asks the controller for this node's
// address and binds both to the cache.
func (o *options) connect(ctx context.Context, cache *store.Store) (*ztnc.Session, error) {
	token, err := controller.ReadToken(o.settings.GetTokenFile())
	if err != nil {
		return nil, err
	}

	client := controller.New(o.settings.GetAPIURL(), token)
	status, err := client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying controller status: %w", err)
	}
	util.WithField("node", status.Address).Debugf("connected to %s", client.BaseURL())

	return ztnc.NewSession(cache, client, status.Address), nil
}

// resolveTarget replaces the -n/-z selectors with the identifiers alias
// resolves to. A plain alias names a network; a compound one also names
// a member.
func (o *options) resolveTarget(sess *ztnc.Session, alias string) error {
	target, err := sess.Resolve(alias)
	if err != nil {
		return err
	}
	o.networkID = target.NetworkID
	if target.MemberID != "" {
		o.memberID = target.MemberID
	}
	util.WithNetwork(o.networkID).Debugf("alias %q resolved", alias)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Fprintln(cmd.OutOrStdout(), "ztnc dev build (set version ldflags for release info)")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "ztnc %s\n", version.Info())
			}
		},
	}
}
