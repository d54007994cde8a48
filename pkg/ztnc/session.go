// Package ztnc implements the CLI's commands against the controller and the
// local alias cache.
//
// Every command runs inside a Session, which owns the cache, the
// controller client and this node's identity for the life of one process.
// Info-class commands merge what the controller returns into the cache
// and return the merged view: the controller object plus an "alias" key
// when one is set locally.
package ztnc

import (
	"context"
	"fmt"
	"os"
	"os/user"

	"github.com/ztnc/ztnc/pkg/audit"
	"github.com/ztnc/ztnc/pkg/resolve"
	"github.com/ztnc/ztnc/pkg/store"
	"github.com/ztnc/ztnc/pkg/util"
)

// Controller is the subset of the controller API the commands use.
// *controller.Client satisfies it.
type Controller interface {
	ListNetworks(ctx context.Context) ([]string, error)
	GetNetwork(ctx context.Context, networkID string) (map[string]any, error)
	CreateNetwork(ctx context.Context, networkID string, body map[string]any) (map[string]any, error)
	UpdateNetwork(ctx context.Context, networkID string, body map[string]any) (map[string]any, error)
	RenameNetwork(ctx context.Context, networkID, name string) (map[string]any, error)
	DeleteNetwork(ctx context.Context, networkID string) (map[string]any, error)
	ListMembers(ctx context.Context, networkID string) ([]string, error)
	GetMember(ctx context.Context, networkID, memberID string) (map[string]any, error)
	UpdateMember(ctx context.Context, networkID, memberID string, body map[string]any) (map[string]any, error)
	DeleteMember(ctx context.Context, networkID, memberID string) (map[string]any, error)
}

// Session is the state of one CLI invocation.
type Session struct {
	store    *store.Store
	client   Controller
	resolver *resolve.Resolver
	nodeID   string
	user     string
}

// NewSession binds a cache and a controller client. nodeID is this node's
// controller address; it is recorded in the cache and prefixes the IDs of
// networks created through the session.
func NewSession(s *store.Store, client Controller, nodeID string) *Session {
	s.NodeID = nodeID
	return &Session{
		store:    s,
		client:   client,
		resolver: resolve.New(s, client),
		nodeID:   nodeID,
		user:     currentUser(),
	}
}

// Store returns the session's alias cache.
func (s *Session) Store() *store.Store {
	return s.store
}

// NodeID returns this node's controller address.
func (s *Session) NodeID() string {
	return s.nodeID
}

// Resolve maps an alias, or a compound "network:member" alias, to
// identifiers.
func (s *Session) Resolve(alias string) (resolve.Target, error) {
	return s.resolver.Lookup(alias)
}

// SetUser overrides the identity recorded in audit events.
func (s *Session) SetUser(user string) {
	s.user = user
}

// begin starts an audit event for a mutating command.
func (s *Session) begin(operation, networkID, memberID string) *audit.Event {
	return audit.NewEvent(s.user, operation).WithNetwork(networkID).WithMember(memberID)
}

// finish records the outcome of event. A failure to write the audit log
// never fails the command.
func (s *Session) finish(event *audit.Event, err error) {
	if logErr := audit.Log(event.Finish(err)); logErr != nil {
		util.Warnf("audit: recording %s: %v", event.Operation, logErr)
	}
}

func currentUser() string {
	username := "unknown"
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	hostname := "unknown"
	if h, err := os.Hostname(); err == nil {
		hostname = h
	}
	return fmt.Sprintf("%s@%s", username, hostname)
}

// InitAuditLogger opens the audit log at path and makes it the default.
func InitAuditLogger(path string, maxSizeMB, maxBackups int) (audit.Logger, error) {
	logger, err := audit.NewFileLogger(path, audit.RotationConfig{
		MaxSize:    int64(maxSizeMB) * 1024 * 1024,
		MaxBackups: maxBackups,
	})
	if err != nil {
		return nil, err
	}
	audit.SetDefaultLogger(logger)
	return logger, nil
}

// QueryAuditLog reads events from the audit log at path.
func QueryAuditLog(path string, filter audit.Filter) ([]*audit.Event, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []*audit.Event{}, nil
	}
	logger, err := audit.NewFileLogger(path, audit.RotationConfig{})
	if err != nil {
		return nil, err
	}
	defer logger.Close()
	return logger.Query(filter)
}
