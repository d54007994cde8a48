package ztnc

import (
	"context"
)

// SetAlias assigns alias to a network or member, or resolves it when no
// network is given. See resolve.Resolver.SetAlias for the
// result shapes.
func (s *Session) SetAlias(ctx context.Context, alias, networkID, memberID string) (any, error) {
	if networkID == "" {
		return s.resolver.SetAlias(ctx, alias, "", "")
	}

	event := s.begin("alias.set", networkID, memberID).WithDetail(alias)
	result, err := s.resolver.SetAlias(ctx, alias, networkID, memberID)
	s.finish(event, err)
	return result, err
}
