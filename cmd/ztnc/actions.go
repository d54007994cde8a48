package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ztnc/ztnc/pkg/ztnc"
)

// defaultNetworkSuffix asks the controller to choose a network ID suffix.
const defaultNetworkSuffix = "______"

// action is one mutually exclusive action flag. Flags with an argument
// bind it to arg; the rest are booleans.
type action struct {
	flag  string
	usage string
	arg   *string
	run   func(ctx context.Context, s *ztnc.Session, o *options) (any, error)
}

func actions(o *options) []action {
	return []action{
		{
			flag:  "set-alias",
			usage: "Set the alias of -n (and -z); with neither, resolve the alias",
			arg:   &o.setAlias,
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.SetAlias(ctx, o.setAlias, o.networkID, o.memberID)
			},
		},
		{
			flag:  "add-network",
			usage: "Create a network; -n gives the 6-character ID suffix",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				suffix := o.networkID
				if suffix == "" {
					suffix = defaultNetworkSuffix
				}
				return s.AddNetwork(ctx, suffix)
			},
		},
		{
			flag:  "delete-network",
			usage: "Delete the network",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.DeleteNetwork(ctx, o.networkID)
			},
		},
		{
			flag:  "network-info",
			usage: "Show the network",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.NetworkInfo(ctx, o.networkID)
			},
		},
		{
			flag:  "set-network-ip-pool",
			usage: "Make `CIDR` the network's route and address pool",
			arg:   &o.networkIPPool,
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.SetNetworkIPPool(ctx, o.networkID, o.networkIPPool)
			},
		},
		{
			flag:  "list-networks",
			usage: "List networks and their aliases",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.ListNetworks(ctx)
			},
		},
		{
			flag:  "authorize-member",
			usage: "Authorize the member",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.AuthorizeMember(ctx, o.networkID, o.memberID)
			},
		},
		{
			flag:  "deauthorize-member",
			usage: "Deauthorize the member",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.DeauthorizeMember(ctx, o.networkID, o.memberID)
			},
		},
		{
			flag:  "delete-member",
			usage: "Delete the member",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.DeleteMember(ctx, o.networkID, o.memberID)
			},
		},
		{
			flag:  "member-info",
			usage: "Show the member",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.MemberInfo(ctx, o.networkID, o.memberID)
			},
		},
		{
			flag:  "set-member-ip",
			usage: "Make `IP` the member's only assigned address",
			arg:   &o.memberIP,
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.SetMemberIP(ctx, o.networkID, o.memberID, o.memberIP)
			},
		},
		{
			flag:  "list-members",
			usage: "List the network's members and their aliases",
			run: func(ctx context.Context, s *ztnc.Session, o *options) (any, error) {
				return s.ListMembers(ctx, o.networkID)
			},
		},
	}
}

func registerActions(root *cobra.Command, o *options) {
	var names []string
	for _, a := range actions(o) {
		if a.arg != nil {
			root.Flags().StringVar(a.arg, a.flag, "", a.usage)
		} else {
			root.Flags().Bool(a.flag, false, a.usage)
		}
		names = append(names, a.flag)
	}
	root.MarkFlagsMutuallyExclusive(names...)
}

// selectedAction returns the action whose flag was given, or nil.
func selectedAction(cmd *cobra.Command, o *options) *action {
	for _, a := range actions(o) {
		if a.arg != nil {
			if cmd.Flags().Changed(a.flag) {
				return &a
			}
			continue
		}
		if on, _ := cmd.Flags().GetBool(a.flag); on {
			return &a
		}
	}
	return nil
}
