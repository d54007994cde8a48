package ztnc

import (
	"context"
	"fmt"

	"github.com/ztnc/ztnc/pkg/resolve"
	"github.com/ztnc/ztnc/pkg/store"
	"github.com/ztnc/ztnc/pkg/util"
)

// AuthorizeMember admits a member to the network.
func (s *Session) AuthorizeMember(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	return s.setAuthorized(ctx, networkID, memberID, true)
}

// DeauthorizeMember revokes a member's admission to the network.
func (s *Session) DeauthorizeMember(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	return s.setAuthorized(ctx, networkID, memberID, false)
}

func (s *Session) setAuthorized(ctx context.Context, networkID, memberID string, authorized bool) (map[string]any, error) {
	if err := checkMember(networkID, memberID); err != nil {
		return nil, err
	}

	operation := "member.deauthorize"
	if authorized {
		operation = "member.authorize"
	}
	event := s.begin(operation, networkID, memberID)
	view, err := s.updateMember(ctx, networkID, memberID, map[string]any{"authorized": authorized})
	s.finish(event, err)
	if err != nil {
		return nil, err
	}

	util.WithMember(networkID, memberID).Infof("authorized=%t", authorized)
	return view, nil
}

// DeleteMember deletes a member on the controller and returns the
// controller's response. The member is fetched first so the cache holds
// its last state; the cached record itself is kept.
func (s *Session) DeleteMember(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	if err := checkMember(networkID, memberID); err != nil {
		return nil, err
	}

	event := s.begin("member.delete", networkID, memberID)
	resp, err := s.deleteMember(ctx, networkID, memberID)
	s.finish(event, err)
	if err != nil {
		return nil, err
	}

	util.WithMember(networkID, memberID).Info("member deleted")
	return resp, nil
}

func (s *Session) deleteMember(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	if _, err := s.fetchMember(ctx, networkID, memberID); err != nil {
		return nil, err
	}
	resp, err := s.client.DeleteMember(ctx, networkID, memberID)
	if err != nil {
		return nil, fmt.Errorf("deleting member %s/%s: %w", networkID, memberID, err)
	}
	return resp, nil
}

// MemberInfo fetches a member, merges it into the cache and returns the
// merged view.
func (s *Session) MemberInfo(ctx context.Context, networkID, memberID string) (map[string]any, error) {
	if err := checkMember(networkID, memberID); err != nil {
		return nil, err
	}
	member, err := s.fetchMember(ctx, networkID, memberID)
	if err != nil {
		return nil, err
	}
	return member.View(), nil
}

// SetMemberIP makes ip the member's only assigned address.
func (s *Session) SetMemberIP(ctx context.Context, networkID, memberID, ip string) (map[string]any, error) {
	if err := checkMember(networkID, memberID); err != nil {
		return nil, err
	}
	addr, err := util.ParseAddress(ip)
	if err != nil {
		return nil, err
	}

	event := s.begin("member.set-ip", networkID, memberID).WithDetail(addr.String())
	view, err := s.updateMember(ctx, networkID, memberID, map[string]any{
		"ipAssignments": []any{addr.String()},
	})
	s.finish(event, err)
	if err != nil {
		return nil, err
	}

	util.WithMember(networkID, memberID).Infof("ip assignments set to [%s]", addr)
	return view, nil
}

// ListMembers returns every member of a network on the controller mapped
// to its compound "network-alias:member-alias", or nil unless both the
// network and the member have an alias.
func (s *Session) ListMembers(ctx context.Context, networkID string) (map[string]any, error) {
	if err := resolve.CheckNetworkID(networkID); err != nil {
		return nil, err
	}

	ids, err := s.client.ListMembers(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", networkID, err)
	}

	out := make(map[string]any, len(ids))
	for _, id := range ids {
		if alias, ok := s.resolver.CompoundAlias(networkID, id); ok {
			out[id] = alias
		} else {
			out[id] = nil
		}
	}
	return out, nil
}

// updateMember fetches the member, overlays fields and posts the whole
// record back. The controller does not take partial member updates. The
// cache only takes the fields once the controller has accepted them.
func (s *Session) updateMember(ctx context.Context, networkID, memberID string, fields map[string]any) (map[string]any, error) {
	member, err := s.fetchMember(ctx, networkID, memberID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.UpdateMember(ctx, networkID, memberID, overlay(member.Attrs, fields))
	if err != nil {
		return nil, fmt.Errorf("updating member %s/%s: %w", networkID, memberID, err)
	}
	member.Merge(fields)
	member.Merge(resp)
	return member.View(), nil
}

func (s *Session) fetchMember(ctx context.Context, networkID, memberID string) (*store.MemberRecord, error) {
	member := s.store.Network(networkID).Member(memberID)
	remote, err := s.client.GetMember(ctx, networkID, memberID)
	if err != nil {
		return nil, fmt.Errorf("fetching member %s/%s: %w", networkID, memberID, err)
	}
	member.Merge(remote)
	util.WithMember(networkID, memberID).Debugf("merged %d attributes", len(remote))
	return member, nil
}

func checkMember(networkID, memberID string) error {
	if err := resolve.CheckNetworkID(networkID); err != nil {
		return err
	}
	return resolve.CheckMemberID(memberID)
}
