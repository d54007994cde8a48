package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ztnc/ztnc/internal/testutil"
	"github.com/ztnc/ztnc/pkg/settings"
	"github.com/ztnc/ztnc/pkg/util"
)

type testEnv struct {
	fake      *testutil.FakeController
	dir       string
	cachePath string
}

// setupEnv points ztnc at a fake controller and a scratch home directory.
func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	fake := testutil.NewFakeController(t)

	tokenFile := filepath.Join(dir, "authtoken.secret")
	if err := os.WriteFile(tokenFile, []byte(fake.Token+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	env := &testEnv{fake: fake, dir: dir, cachePath: filepath.Join(dir, "state", "ztnc.cache")}
	t.Setenv("HOME", dir)
	t.Setenv(settings.EnvAPIURL, fake.URL())
	t.Setenv(settings.EnvStateDir, filepath.Join(dir, "state"))
	t.Setenv(settings.EnvTokenFile, tokenFile)
	t.Setenv(settings.EnvCachePath, env.cachePath)
	t.Setenv(settings.EnvAuditLog, filepath.Join(dir, "audit.log"))
	return env
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func executeJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("ztnc %s: %v", strings.Join(args, " "), err)
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("ztnc %s: output is not a JSON object: %v\n%s", strings.Join(args, " "), err, out)
	}
	return v
}

func TestAliasWorkflow(t *testing.T) {
	env := setupEnv(t)
	const member = "a1b2c3d4e5"

	created := executeJSON(t, "--add-network")
	networkID, _ := created["id"].(string)
	if networkID != testutil.FakeNodeID+"000001" {
		t.Fatalf("created network id = %v", created["id"])
	}
	env.fake.AddMember(networkID, member, nil)

	executeJSON(t, "--set-alias", "lab", "-n", networkID)
	executeJSON(t, "--set-alias", "bob", "-z", member, "lab")

	listed := executeJSON(t, "--list-networks")
	if listed[networkID] != "lab" {
		t.Errorf("list-networks = %v, want %s aliased lab", listed, networkID)
	}

	view := executeJSON(t, "--authorize-member", "lab:bob")
	if view["authorized"] != true || view["alias"] != "bob" {
		t.Errorf("authorize-member view = %v", view)
	}

	view = executeJSON(t, "--set-member-ip", "10.0.0.5", "lab:bob")
	if ips, _ := view["ipAssignments"].([]any); len(ips) != 1 || ips[0] != "10.0.0.5" {
		t.Errorf("ipAssignments = %v, want [10.0.0.5]", view["ipAssignments"])
	}

	members := executeJSON(t, "--list-members", "lab")
	if members[member] != "lab:bob" {
		t.Errorf("list-members = %v", members)
	}

	info := executeJSON(t, "--network-info", "lab")
	cached, _ := info["member"].(map[string]any)
	if m, _ := cached[member].(map[string]any); m["alias"] != "bob" {
		t.Errorf("network-info member subtree = %v", info["member"])
	}

	if _, err := os.Stat(env.cachePath); err != nil {
		t.Errorf("alias cache not saved: %v", err)
	}
}

func TestSetAlias_QueryPrintsTarget(t *testing.T) {
	env := setupEnv(t)
	networkID := testutil.FakeNodeID + "000001"
	env.fake.AddNetwork(networkID, nil)

	executeJSON(t, "--set-alias", "lab", "-n", networkID)
	target := executeJSON(t, "--set-alias", "lab")
	if target["network"] != networkID {
		t.Errorf("alias query = %v, want network %s", target, networkID)
	}
}

func TestSetNetworkIPPool(t *testing.T) {
	env := setupEnv(t)
	networkID := testutil.FakeNodeID + "000001"
	env.fake.AddNetwork(networkID, nil)

	view := executeJSON(t, "--set-network-ip-pool", "10.0.0.0/24", "-n", networkID)
	pools, _ := view["ipAssignmentPools"].([]any)
	if len(pools) != 1 {
		t.Fatalf("ipAssignmentPools = %v", view["ipAssignmentPools"])
	}
	pool := pools[0].(map[string]any)
	if pool["ipRangeStart"] != "10.0.0.1" || pool["ipRangeEnd"] != "10.0.0.254" {
		t.Errorf("pool = %v", pool)
	}
}

func TestNoAction(t *testing.T) {
	setupEnv(t)
	if _, err := execute(t); !errors.Is(err, errNoAction) {
		t.Errorf("error = %v, want errNoAction", err)
	}
}

func TestActionsAreMutuallyExclusive(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "--list-networks", "--network-info", "-n", testutil.FakeNodeID+"000001")
	if err == nil || !strings.Contains(err.Error(), "none of the others can be") {
		t.Errorf("error = %v, want mutually exclusive flag error", err)
	}
}

func TestUnknownAlias(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "--network-info", "nope")
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMissingToken_StillSavesCache(t *testing.T) {
	env := setupEnv(t)
	t.Setenv(settings.EnvTokenFile, filepath.Join(env.dir, "missing.secret"))

	_, err := execute(t, "--list-networks")
	if !errors.Is(err, util.ErrAuthMissing) {
		t.Fatalf("error = %v, want ErrAuthMissing", err)
	}
	if _, err := os.Stat(env.cachePath); err != nil {
		t.Errorf("alias cache not saved after failure: %v", err)
	}
}

func TestRemoteFailureExitsWithError(t *testing.T) {
	env := setupEnv(t)
	networkID := testutil.FakeNodeID + "000001"
	env.fake.AddNetwork(networkID, nil)
	env.fake.FailNext("GET", "/controller/network/"+networkID, 500)

	out, err := execute(t, "--network-info", "-n", networkID)
	if !errors.Is(err, util.ErrRemoteRequest) {
		t.Errorf("error = %v, want ErrRemoteRequest", err)
	}
	if out != "" {
		t.Errorf("failed command printed %q", out)
	}
}

func TestAuditList(t *testing.T) {
	env := setupEnv(t)
	networkID := testutil.FakeNodeID + "000001"
	env.fake.AddNetwork(networkID, nil)

	executeJSON(t, "--set-network-ip-pool", "10.0.0.0/24", "-n", networkID)
	executeJSON(t, "--network-info", "-n", networkID)

	out, err := execute(t, "audit", "list", "--json")
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	var events []map[string]any
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("audit list --json: %v\n%s", err, out)
	}
	if len(events) != 1 {
		t.Fatalf("got %d audit events, want 1: %v", len(events), events)
	}
	if events[0]["operation"] != "network.set-ip-pool" || events[0]["detail"] != "10.0.0.0/24" {
		t.Errorf("event = %v", events[0])
	}

	out, err = execute(t, "audit", "list", "--failures")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No audit events found") {
		t.Errorf("audit list --failures = %q", out)
	}
}

func TestSettingsCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{settings.EnvAPIURL, settings.EnvStateDir, settings.EnvTokenFile, settings.EnvCachePath, settings.EnvAuditLog} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if _, err := execute(t, "settings", "set", "state_dir", "/srv/zt"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	out, err := execute(t, "settings", "get", "cache_path")
	if err != nil {
		t.Fatalf("settings get: %v", err)
	}
	if strings.TrimSpace(out) != "/srv/zt/ztnc.cache" {
		t.Errorf("cache_path = %q", out)
	}

	if _, err := execute(t, "settings", "set", "network", "x"); err == nil {
		t.Error("unknown setting should fail")
	}

	if _, err := execute(t, "settings", "clear"); err != nil {
		t.Fatal(err)
	}
	out, _ = execute(t, "settings", "get", "api_url")
	if strings.TrimSpace(out) != settings.DefaultAPIURL {
		t.Errorf("api_url after clear = %q", out)
	}
}
