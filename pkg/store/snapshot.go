package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ztnc/ztnc/pkg/util"
)

// SnapshotVersion is written into every cache file. Bump it whenever the
// snapshot layout changes; older files are then discarded on load.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned by Decode for a snapshot written with a
// different layout version.
var ErrSnapshotVersion = errors.New("unsupported cache snapshot version")

type snapshotHeader struct {
	Version int `msgpack:"version"`
}

type snapshot struct {
	Version  int               `msgpack:"version"`
	NodeID   string            `msgpack:"node_id,omitempty"`
	Networks []networkSnapshot `msgpack:"networks"`
}

// Attrs are kept as the controller's JSON so value types survive the round
// trip unchanged.
type networkSnapshot struct {
	ID      string           `msgpack:"id"`
	Alias   string           `msgpack:"alias,omitempty"`
	Attrs   []byte           `msgpack:"attrs,omitempty"`
	Members []memberSnapshot `msgpack:"members,omitempty"`
}

type memberSnapshot struct {
	ID    string `msgpack:"id"`
	Alias string `msgpack:"alias,omitempty"`
	Attrs []byte `msgpack:"attrs,omitempty"`
}

// Encode serializes the whole store.
func Encode(s *Store) ([]byte, error) {
	snap := snapshot{
		Version:  SnapshotVersion,
		NodeID:   s.NodeID,
		Networks: make([]networkSnapshot, 0, s.Len()),
	}
	for _, n := range s.Networks() {
		attrs, err := encodeAttrs(n.Attrs)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", n.ID, err)
		}
		ns := networkSnapshot{ID: n.ID, Alias: n.Alias, Attrs: attrs}
		for _, m := range n.Members() {
			attrs, err := encodeAttrs(m.Attrs)
			if err != nil {
				return nil, fmt.Errorf("member %s/%s: %w", n.ID, m.ID, err)
			}
			ns.Members = append(ns.Members, memberSnapshot{ID: m.ID, Alias: m.Alias, Attrs: attrs})
		}
		snap.Networks = append(snap.Networks, ns)
	}
	return msgpack.Marshal(&snap)
}

// Decode parses a snapshot produced by Encode.
func Decode(data []byte) (*Store, error) {
	var hdr snapshotHeader
	if err := msgpack.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("decoding snapshot header: %w", err)
	}
	if hdr.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSnapshotVersion, hdr.Version, SnapshotVersion)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	s := New()
	s.NodeID = snap.NodeID
	for _, ns := range snap.Networks {
		n := s.Network(ns.ID)
		n.Alias = ns.Alias
		attrs, err := decodeAttrs(ns.Attrs)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", ns.ID, err)
		}
		n.Attrs = attrs
		for _, ms := range ns.Members {
			m := n.Member(ms.ID)
			m.Alias = ms.Alias
			attrs, err := decodeAttrs(ms.Attrs)
			if err != nil {
				return nil, fmt.Errorf("member %s/%s: %w", ns.ID, ms.ID, err)
			}
			m.Attrs = attrs
		}
	}
	return s, nil
}

// Load reads the cache at path. The cache is disposable: any failure yields
// a fresh empty store and a logged diagnostic, never an error.
func Load(path string) *Store {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			util.Debugf("alias cache %s not found, starting empty", path)
		} else {
			util.Warnf("alias cache %s unreadable, starting empty: %v", path, err)
		}
		return New()
	}

	s, err := Decode(data)
	if err != nil {
		util.Warnf("alias cache %s discarded, starting empty: %v", path, err)
		return New()
	}
	util.Debugf("alias cache %s loaded: %d networks", path, s.Len())
	return s
}

// Save writes the whole store to path, replacing any previous cache
// atomically. There is no locking; concurrent writers race and the last
// rename wins.
func Save(path string, s *Store) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encoding alias cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing alias cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing alias cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing alias cache: %w", err)
	}
	return nil
}

func encodeAttrs(attrs map[string]any) ([]byte, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	return json.Marshal(attrs)
}

func decodeAttrs(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
