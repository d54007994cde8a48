package ztnc

import (
	"context"
	"fmt"

	"github.com/ztnc/ztnc/pkg/resolve"
	"github.com/ztnc/ztnc/pkg/store"
	"github.com/ztnc/ztnc/pkg/util"
)

// AddNetwork creates a network whose ID is this node's address followed by
// suffix. A suffix of "______" lets the controller pick one. The
// controller's response is returned as is and not cached.
func (s *Session) AddNetwork(ctx context.Context, suffix string) (map[string]any, error) {
	if err := resolve.CheckNetworkSuffix(suffix); err != nil {
		return nil, err
	}
	if s.nodeID == "" {
		return nil, fmt.Errorf("node address unknown, cannot derive a network ID")
	}

	networkID := s.nodeID + suffix
	event := s.begin("network.add", networkID, "")
	resp, err := s.client.CreateNetwork(ctx, networkID, nil)
	if id, ok := resp["id"].(string); ok {
		event.WithNetwork(id)
	}
	s.finish(event, err)
	if err != nil {
		return nil, fmt.Errorf("creating network %s: %w", networkID, err)
	}

	util.WithNetwork(event.Network).Info("network created")
	return resp, nil
}

// DeleteNetwork drops the network and its members from the cache, then
// deletes it on the controller. The cache entry is gone even if the
// controller call fails.
func (s *Session) DeleteNetwork(ctx context.Context, networkID string) (map[string]any, error) {
	if err := resolve.CheckNetworkID(networkID); err != nil {
		return nil, err
	}

	s.store.DeleteNetwork(networkID)

	event := s.begin("network.delete", networkID, "")
	resp, err := s.client.DeleteNetwork(ctx, networkID)
	s.finish(event, err)
	if err != nil {
		return nil, fmt.Errorf("deleting network %s: %w", networkID, err)
	}

	util.WithNetwork(networkID).Info("network deleted")
	return resp, nil
}

// NetworkInfo fetches a network, merges it into the cache and returns the
// merged view.
func (s *Session) NetworkInfo(ctx context.Context, networkID string) (map[string]any, error) {
	if err := resolve.CheckNetworkID(networkID); err != nil {
		return nil, err
	}
	network, err := s.fetchNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}
	return network.View(), nil
}

// ListNetworks returns every network on the controller mapped to its local
// alias, or nil when it has none.
func (s *Session) ListNetworks(ctx context.Context) (map[string]any, error) {
	ids, err := s.client.ListNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}

	out := make(map[string]any, len(ids))
	for _, id := range ids {
		if alias, ok := s.resolver.NetworkAlias(id); ok {
			out[id] = alias
		} else {
			out[id] = nil
		}
	}
	return out, nil
}

// SetNetworkIPPool makes cidr the network's only managed route and
// auto-assign pool, with automatic IPv4 assignment turned on. Existing
// routes and pools are replaced, not appended to.
func (s *Session) SetNetworkIPPool(ctx context.Context, networkID, cidr string) (map[string]any, error) {
	if err := resolve.CheckNetworkID(networkID); err != nil {
		return nil, err
	}
	start, end, prefix, err := util.HostRange(cidr)
	if err != nil {
		return nil, err
	}

	event := s.begin("network.set-ip-pool", networkID, "").WithDetail(prefix.String())
	view, err := s.setNetworkIPPool(ctx, networkID, map[string]any{
		"v4AssignMode": map[string]any{"zt": true},
		"routes": []any{
			map[string]any{"target": prefix.String(), "via": nil},
		},
		"ipAssignmentPools": []any{
			map[string]any{"ipRangeStart": start.String(), "ipRangeEnd": end.String()},
		},
	})
	s.finish(event, err)
	if err != nil {
		return nil, err
	}

	util.WithNetwork(networkID).Infof("ip pool set to %s-%s", start, end)
	return view, nil
}

func (s *Session) setNetworkIPPool(ctx context.Context, networkID string, fields map[string]any) (map[string]any, error) {
	network, err := s.fetchNetwork(ctx, networkID)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.UpdateNetwork(ctx, networkID, overlay(network.Attrs, fields))
	if err != nil {
		return nil, fmt.Errorf("updating network %s: %w", networkID, err)
	}
	network.Merge(fields)
	network.Merge(resp)
	return network.View(), nil
}

// overlay returns a copy of attrs with fields laid over it.
func overlay(attrs, fields map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+len(fields))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// fetchNetwork is the merge-on-read step shared by network commands: the
// record is created if needed before the controller is asked.
func (s *Session) fetchNetwork(ctx context.Context, networkID string) (*store.NetworkRecord, error) {
	network := s.store.Network(networkID)
	remote, err := s.client.GetNetwork(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("fetching network %s: %w", networkID, err)
	}
	network.Merge(remote)
	util.WithNetwork(networkID).Debugf("merged %d attributes", len(remote))
	return network, nil
}
