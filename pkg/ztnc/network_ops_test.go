package ztnc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ztnc/ztnc/internal/testutil"
	"github.com/ztnc/ztnc/pkg/resolve"
	"github.com/ztnc/ztnc/pkg/store"
	"github.com/ztnc/ztnc/pkg/util"
)

func TestAddNetwork_ControllerPicksSuffix(t *testing.T) {
	s, fake := newTestSession(t)

	resp, err := s.AddNetwork(context.Background(), "______")
	if err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}

	want := testutil.FakeNodeID + "000001"
	if resp["id"] != want {
		t.Errorf("created id = %v, want %s", resp["id"], want)
	}
	reqs := fake.RequestsTo("POST", "/controller/network/"+testutil.FakeNodeID+"______")
	if len(reqs) != 1 {
		t.Fatalf("got %d create requests, want 1", len(reqs))
	}
	if len(reqs[0].Body) != 0 {
		t.Errorf("create body = %v, want {}", reqs[0].Body)
	}
	if s.Store().Len() != 0 {
		t.Errorf("AddNetwork cached %d records, want none", s.Store().Len())
	}
}

func TestAddNetwork_ExplicitSuffix(t *testing.T) {
	s, fake := newTestSession(t)

	if _, err := s.AddNetwork(context.Background(), "00abcd"); err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	if _, ok := fake.Network(testutil.FakeNodeID + "00abcd"); !ok {
		t.Error("network was not created on the controller")
	}
}

func TestAddNetwork_RequiresSuffixForm(t *testing.T) {
	s, _ := newTestSession(t)
	_, err := s.AddNetwork(context.Background(), "abc")
	if !errors.Is(err, util.ErrInvalidIdentifier) {
		t.Errorf("error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestDeleteNetwork_RemovesSubtree(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddMember(testNetwork, testMember, nil)
	n := s.Store().Network(testNetwork)
	n.Alias = "lab"
	n.Member(testMember).Alias = "bob"

	if _, err := s.DeleteNetwork(context.Background(), testNetwork); err != nil {
		t.Fatalf("DeleteNetwork: %v", err)
	}
	if _, ok := s.Store().Lookup(testNetwork); ok {
		t.Error("network still cached after delete")
	}
	if _, ok := fake.Network(testNetwork); ok {
		t.Error("network still on controller after delete")
	}
	if _, err := s.Resolve("lab:bob"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("alias of deleted member still resolves: %v", err)
	}
}

func TestDeleteNetwork_RemoteFailureStillDropsCache(t *testing.T) {
	s, fake := newTestSession(t)
	s.Store().Network(testNetwork).Alias = "lab"
	fake.FailNext("DELETE", "/controller/network/"+testNetwork, 500)

	_, err := s.DeleteNetwork(context.Background(), testNetwork)
	if !errors.Is(err, util.ErrRemoteRequest) {
		t.Fatalf("error = %v, want ErrRemoteRequest", err)
	}
	if _, ok := s.Store().Lookup(testNetwork); ok {
		t.Error("cache entry survived a failed remote delete")
	}
}

func TestNetworkInfo_MergeKeepsAlias(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddNetwork(testNetwork, map[string]any{"name": "remote-name", "private": true})

	n := s.Store().Network(testNetwork)
	n.Alias = "lab"
	n.Attrs = map[string]any{"name": "stale", "localOnly": "kept"}

	view, err := s.NetworkInfo(context.Background(), testNetwork)
	if err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}

	want := map[string]any{
		"id":        testNetwork,
		"nwid":      testNetwork,
		"name":      "remote-name",
		"private":   true,
		"localOnly": "kept",
		"alias":     "lab",
	}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Errorf("NetworkInfo view mismatch (-want +got):\n%s", diff)
	}
	if _, ok := n.Attrs["alias"]; ok {
		t.Error("alias leaked into cached attributes")
	}
}

func TestNetworkInfo_CreatesRecordOnRead(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddNetwork(testNetwork, nil)

	if _, err := s.NetworkInfo(context.Background(), testNetwork); err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}
	n, ok := s.Store().Lookup(testNetwork)
	if !ok {
		t.Fatal("NetworkInfo did not cache the network")
	}
	if n.Attrs["id"] != testNetwork {
		t.Errorf("cached attrs = %v", n.Attrs)
	}
}

func TestNetworkInfo_ShowsCachedMembers(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddMember(testNetwork, testMember, nil)
	if _, err := s.SetAlias(context.Background(), "bob", testNetwork, testMember); err != nil {
		t.Fatalf("SetAlias: %v", err)
	}

	view, err := s.NetworkInfo(context.Background(), testNetwork)
	if err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}
	members, ok := view[store.MembersKey].(map[string]any)
	if !ok {
		t.Fatalf("view has no %q subtree: %v", store.MembersKey, view)
	}
	member, ok := members[testMember].(map[string]any)
	if !ok {
		t.Fatalf("member %s missing from view: %v", testMember, members)
	}
	if member["alias"] != "bob" {
		t.Errorf("member alias = %v, want bob", member["alias"])
	}
}

func TestListNetworks_AliasesOrNull(t *testing.T) {
	s, fake := newTestSession(t)
	other := testutil.FakeNodeID + "000002"
	fake.AddNetwork(testNetwork, nil)
	fake.AddNetwork(other, nil)
	s.Store().Network(testNetwork).Alias = "lab"

	got, err := s.ListNetworks(context.Background())
	if err != nil {
		t.Fatalf("ListNetworks: %v", err)
	}

	want := map[string]any{testNetwork: "lab", other: nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListNetworks mismatch (-want +got):\n%s", diff)
	}
	if s.Store().Len() != 1 {
		t.Errorf("listing created cache records: Len() = %d, want 1", s.Store().Len())
	}
}

func TestSetNetworkIPPool_ReplacesPoolsAndRoutes(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddNetwork(testNetwork, map[string]any{
		"routes": []any{
			map[string]any{"target": "192.168.0.0/16", "via": nil},
			map[string]any{"target": "172.16.0.0/12", "via": "192.168.0.1"},
		},
		"ipAssignmentPools": []any{
			map[string]any{"ipRangeStart": "192.168.0.1", "ipRangeEnd": "192.168.255.254"},
		},
		"v4AssignMode": map[string]any{"zt": false},
	})

	view, err := s.SetNetworkIPPool(context.Background(), testNetwork, "10.0.0.0/24")
	if err != nil {
		t.Fatalf("SetNetworkIPPool: %v", err)
	}

	want := map[string]any{
		"v4AssignMode":      map[string]any{"zt": true},
		"routes":            []any{map[string]any{"target": "10.0.0.0/24", "via": nil}},
		"ipAssignmentPools": []any{map[string]any{"ipRangeStart": "10.0.0.1", "ipRangeEnd": "10.0.0.254"}},
	}
	remote, _ := fake.Network(testNetwork)
	for key, wantValue := range want {
		if diff := cmp.Diff(wantValue, view[key]); diff != "" {
			t.Errorf("view[%s] mismatch (-want +got):\n%s", key, diff)
		}
		if diff := cmp.Diff(wantValue, remote[key]); diff != "" {
			t.Errorf("controller %s mismatch (-want +got):\n%s", key, diff)
		}
	}

	posts := fake.RequestsTo("POST", "/controller/network/"+testNetwork)
	if len(posts) != 1 {
		t.Fatalf("got %d POSTs, want 1", len(posts))
	}
	if posts[0].Body["id"] != testNetwork {
		t.Errorf("POST body is not the full network record: %v", posts[0].Body)
	}
}

func TestSetNetworkIPPool_FailedPostLeavesCache(t *testing.T) {
	s, fake := newTestSession(t)
	routes := []any{map[string]any{"target": "192.168.0.0/16", "via": nil}}
	fake.AddNetwork(testNetwork, map[string]any{"routes": routes})
	fake.FailNext("POST", "/controller/network/"+testNetwork, 500)

	if _, err := s.SetNetworkIPPool(context.Background(), testNetwork, "10.0.0.0/24"); !errors.Is(err, util.ErrRemoteRequest) {
		t.Fatalf("error = %v, want ErrRemoteRequest", err)
	}

	n, ok := s.Store().Lookup(testNetwork)
	if !ok {
		t.Fatal("network was not cached by the fetch")
	}
	if diff := cmp.Diff(routes, n.Attrs["routes"]); diff != "" {
		t.Errorf("cached routes changed by a rejected update (-want +got):\n%s", diff)
	}
	if _, ok := n.Attrs["ipAssignmentPools"]; ok {
		t.Error("rejected pool reached the cache")
	}
}

func TestSetNetworkIPPool_InvalidCIDR(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddNetwork(testNetwork, nil)

	for _, cidr := range []string{"10.0.0.1/24", "10.0.0.0", "not-a-cidr"} {
		t.Run(cidr, func(t *testing.T) {
			_, err := s.SetNetworkIPPool(context.Background(), testNetwork, cidr)
			if !errors.Is(err, util.ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}
	if n := len(fake.Requests()); n != 0 {
		t.Errorf("invalid CIDR reached the controller %d times", n)
	}
}

func TestSetAlias_NetworkRenamesOnController(t *testing.T) {
	s, fake := newTestSession(t)
	fake.AddNetwork(testNetwork, map[string]any{"name": "old"})

	got, err := s.SetAlias(context.Background(), "lab", testNetwork, "")
	if err != nil {
		t.Fatalf("SetAlias: %v", err)
	}

	views, ok := got.(map[string]map[string]any)
	if !ok {
		t.Fatalf("SetAlias returned %T", got)
	}
	if views[testNetwork]["alias"] != "lab" {
		t.Errorf("returned view = %v", views[testNetwork])
	}
	if remote, _ := fake.Network(testNetwork); remote["name"] != "lab" {
		t.Errorf("controller name = %v, want lab", remote["name"])
	}
}

func TestSetAlias_QueryMode(t *testing.T) {
	s, fake := newTestSession(t)
	s.Store().Network(testNetwork).Alias = "lab"

	got, err := s.SetAlias(context.Background(), "lab", "", "")
	if err != nil {
		t.Fatalf("SetAlias: %v", err)
	}
	if diff := cmp.Diff(resolve.Target{NetworkID: testNetwork}, got); diff != "" {
		t.Errorf("query result mismatch (-want +got):\n%s", diff)
	}
	if n := len(fake.Requests()); n != 0 {
		t.Errorf("alias query reached the controller %d times", n)
	}
}
