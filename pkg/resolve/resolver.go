// Package resolve maps human aliases to controller identifiers and back,
// using the local alias cache.
//
// Aliases are not required to be unique. When several records share one,
// the record inserted into the cache first wins.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/ztnc/ztnc/pkg/store"
	"github.com/ztnc/ztnc/pkg/util"
)

// Separator splits a compound "network-alias:member-alias".
const Separator = ":"

// Identifier lengths. The 6-character network form is the suffix a new
// network ID gets appended to this node's address.
const (
	NetworkIDLen      = 16
	NetworkSuffixLen  = 6
	MemberIDLen       = 10
	networkIDWant     = "16 characters, or a 6-character suffix"
	memberIDWant      = "10 characters"
	networkSuffixWant = "a 6-character suffix"
)

// NetworkRenamer pushes a network display name to the controller.
type NetworkRenamer interface {
	RenameNetwork(ctx context.Context, networkID, name string) (map[string]any, error)
}

// Target is the result of resolving an alias.
type Target struct {
	NetworkID string `json:"network"`
	MemberID  string `json:"member,omitempty"`
}

// Resolver resolves and assigns aliases over a store.
type Resolver struct {
	store   *store.Store
	renamer NetworkRenamer
}

// New returns a resolver over s. renamer receives network renames and may
// be nil when only lookups are needed.
func New(s *store.Store, renamer NetworkRenamer) *Resolver {
	return &Resolver{store: s, renamer: renamer}
}

// ValidNetworkID reports whether id has a network identifier's length.
// Only the length is checked.
func ValidNetworkID(id string) bool {
	return len(id) == NetworkIDLen || len(id) == NetworkSuffixLen
}

// ValidMemberID reports whether id has a member identifier's length.
// Only the length is checked.
func ValidMemberID(id string) bool {
	return len(id) == MemberIDLen
}

// CheckNetworkID returns an IdentifierError unless id is a valid network ID.
func CheckNetworkID(id string) error {
	if !ValidNetworkID(id) {
		return util.NewIdentifierError("network", id, networkIDWant)
	}
	return nil
}

// CheckNetworkSuffix returns an IdentifierError unless id is the short
// 6-character form used when creating a network.
func CheckNetworkSuffix(id string) error {
	if len(id) != NetworkSuffixLen {
		return util.NewIdentifierError("network", id, networkSuffixWant)
	}
	return nil
}

// CheckMemberID returns an IdentifierError unless id is a valid member ID.
func CheckMemberID(id string) error {
	if !ValidMemberID(id) {
		return util.NewIdentifierError("member", id, memberIDWant)
	}
	return nil
}

// SetAlias assigns alias, or resolves it when no identifier is given.
//
//   - network and member given: sets the member's alias locally and returns
//     the network's members (ID to view). Nothing is sent to the controller.
//   - network only: sets the network's alias and renames the network on the
//     controller to match. Returns all cached networks (ID to view).
//   - no network: resolves alias and returns the Target. A member ID on
//     its own has no network to live in and is ignored.
//
// The local alias is kept even if the controller rename fails.
func (r *Resolver) SetAlias(ctx context.Context, alias, networkID, memberID string) (any, error) {
	if alias == "" {
		return nil, util.NewArgumentError("alias", alias, fmt.Errorf("must not be empty"))
	}

	if networkID == "" {
		return r.Lookup(alias)
	}
	if err := CheckNetworkID(networkID); err != nil {
		return nil, err
	}

	if memberID != "" {
		if err := CheckMemberID(memberID); err != nil {
			return nil, err
		}
		network := r.store.Network(networkID)
		network.Member(memberID).Alias = alias
		util.WithMember(networkID, memberID).Infof("member alias set to %q", alias)
		return memberViews(network), nil
	}

	r.store.Network(networkID).Alias = alias
	util.WithNetwork(networkID).Infof("network alias set to %q", alias)
	if r.renamer != nil {
		if _, err := r.renamer.RenameNetwork(ctx, networkID, alias); err != nil {
			return nil, fmt.Errorf("renaming network %s: %w", networkID, err)
		}
	}
	return networkViews(r.store), nil
}

// Lookup resolves a network alias, or a compound "network:member" alias,
// to identifiers. The first match in cache insertion order wins; no match
// is a NotFoundError. Records without an alias never match, so an empty
// alias or alias part finds nothing.
func (r *Resolver) Lookup(alias string) (Target, error) {
	if networkAlias, memberAlias, compound := strings.Cut(alias, Separator); compound {
		if networkAlias == "" || memberAlias == "" {
			return Target{}, util.NewNotFoundError(alias)
		}
		for _, n := range r.store.Networks() {
			if n.Alias != networkAlias {
				continue
			}
			for _, m := range n.Members() {
				if m.Alias == memberAlias {
					return Target{NetworkID: n.ID, MemberID: m.ID}, nil
				}
			}
		}
		return Target{}, util.NewNotFoundError(alias)
	}

	if alias == "" {
		return Target{}, util.NewNotFoundError(alias)
	}
	for _, n := range r.store.Networks() {
		if n.Alias == alias {
			return Target{NetworkID: n.ID}, nil
		}
	}
	return Target{}, util.NewNotFoundError(alias)
}

// NetworkAlias returns the alias of a cached network. It never creates a
// record.
func (r *Resolver) NetworkAlias(networkID string) (string, bool) {
	n, ok := r.store.Lookup(networkID)
	if !ok || n.Alias == "" {
		return "", false
	}
	return n.Alias, true
}

// MemberAlias returns the alias of a cached member. It never creates a
// record.
func (r *Resolver) MemberAlias(networkID, memberID string) (string, bool) {
	n, ok := r.store.Lookup(networkID)
	if !ok {
		return "", false
	}
	m, ok := n.LookupMember(memberID)
	if !ok || m.Alias == "" {
		return "", false
	}
	return m.Alias, true
}

// CompoundAlias returns "network-alias:member-alias" for a cached member,
// the form Lookup accepts. Both aliases must be set. It never creates a
// record.
func (r *Resolver) CompoundAlias(networkID, memberID string) (string, bool) {
	networkAlias, ok := r.NetworkAlias(networkID)
	if !ok {
		return "", false
	}
	memberAlias, ok := r.MemberAlias(networkID, memberID)
	if !ok {
		return "", false
	}
	return networkAlias + Separator + memberAlias, true
}

func memberViews(n *store.NetworkRecord) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, m := range n.Members() {
		out[m.ID] = m.View()
	}
	return out
}

func networkViews(s *store.Store) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, n := range s.Networks() {
		out[n.ID] = n.View()
	}
	return out
}
