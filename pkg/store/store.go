// Package store holds the local alias cache: network and member records
// keyed by controller identifier, each carrying an optional alias and the
// attributes last fetched from the controller.
//
// Records are created on first reference through the get-or-insert
// accessors (Store.Network, NetworkRecord.Member). Lookup and LookupMember
// never create anything and are what read-only callers such as alias
// resolution must use.
//
// Both levels remember insertion order. Alias uniqueness is not enforced,
// so resolution is first-match and that order has to be deterministic.
package store

// MemberRecord is the cached state of one member device of a network.
type MemberRecord struct {
	ID    string
	Alias string
	Attrs map[string]any
}

// NetworkRecord is the cached state of one network and its members.
type NetworkRecord struct {
	ID    string
	Alias string
	Attrs map[string]any

	members map[string]*MemberRecord
	order   []string
}

// Store is the root of the alias cache.
type Store struct {
	// NodeID is this node's own controller address as last reported by the
	// controller's status endpoint.
	NodeID string

	networks map[string]*NetworkRecord
	order    []string
}

// New returns an empty store.
func New() *Store {
	return &Store{networks: make(map[string]*NetworkRecord)}
}

// Network returns the record for id, inserting an empty one if absent.
func (s *Store) Network(id string) *NetworkRecord {
	if s.networks == nil {
		s.networks = make(map[string]*NetworkRecord)
	}
	if n, ok := s.networks[id]; ok {
		return n
	}
	n := &NetworkRecord{ID: id}
	s.networks[id] = n
	s.order = append(s.order, id)
	return n
}

// Lookup returns the record for id without creating it.
func (s *Store) Lookup(id string) (*NetworkRecord, bool) {
	n, ok := s.networks[id]
	return n, ok
}

// Networks returns all network records in insertion order.
func (s *Store) Networks() []*NetworkRecord {
	out := make([]*NetworkRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.networks[id])
	}
	return out
}

// Len returns the number of cached networks.
func (s *Store) Len() int {
	return len(s.order)
}

// DeleteNetwork removes id and all of its members. It reports whether the
// network was cached.
func (s *Store) DeleteNetwork(id string) bool {
	if _, ok := s.networks[id]; !ok {
		return false
	}
	delete(s.networks, id)
	s.order = removeID(s.order, id)
	return true
}

// Member returns the member record for id, inserting an empty one if absent.
func (n *NetworkRecord) Member(id string) *MemberRecord {
	if n.members == nil {
		n.members = make(map[string]*MemberRecord)
	}
	if m, ok := n.members[id]; ok {
		return m
	}
	m := &MemberRecord{ID: id}
	n.members[id] = m
	n.order = append(n.order, id)
	return m
}

// LookupMember returns the member record for id without creating it.
func (n *NetworkRecord) LookupMember(id string) (*MemberRecord, bool) {
	m, ok := n.members[id]
	return m, ok
}

// Members returns the network's member records in insertion order.
func (n *NetworkRecord) Members() []*MemberRecord {
	out := make([]*MemberRecord, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.members[id])
	}
	return out
}

// DeleteMember removes a member record. It reports whether it was cached.
func (n *NetworkRecord) DeleteMember(id string) bool {
	if _, ok := n.members[id]; !ok {
		return false
	}
	delete(n.members, id)
	n.order = removeID(n.order, id)
	return true
}

// Merge overlays remote attributes onto the record. Remote values win on
// every key; the alias is kept.
func (n *NetworkRecord) Merge(remote map[string]any) {
	n.Attrs = mergeAttrs(n.Attrs, remote)
}

// MembersKey holds a network view's cached members, keyed by member ID.
const MembersKey = "member"

// View returns the record as the controller object plus its local alias
// and, under MembersKey, the views of its cached members.
func (n *NetworkRecord) View() map[string]any {
	out := view(n.Attrs, n.Alias)
	if len(n.order) > 0 {
		members := make(map[string]any, len(n.order))
		for _, m := range n.Members() {
			members[m.ID] = m.View()
		}
		out[MembersKey] = members
	}
	return out
}

// Merge overlays remote attributes onto the record. Remote values win on
// every key; the alias is kept.
func (m *MemberRecord) Merge(remote map[string]any) {
	m.Attrs = mergeAttrs(m.Attrs, remote)
}

// View returns the record as the controller object plus its local alias.
func (m *MemberRecord) View() map[string]any {
	return view(m.Attrs, m.Alias)
}

func mergeAttrs(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func view(attrs map[string]any, alias string) map[string]any {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	if alias != "" {
		out["alias"] = alias
	}
	return out
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
