package bridge

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/e14n/pump2status/types"
)

const (
	introductionConcurrency = 25
	saveFriendsConcurrency  = 10
)

// SyncResult counts the edge mutations of one synchronization.
type SyncResult struct {
	Added   int
	Deleted int
}

// SyncEdges makes the stored edges leaving from equal to current.
func (s *Service) SyncEdges(ctx context.Context, from string, current []string) (SyncResult, error) {
	return s.syncEdges(ctx, from, current, true)
}

// AddEdges records the edges from current that are missing and removes
// nothing. It is used when current is known to be incomplete.
func (s *Service) AddEdges(ctx context.Context, from string, current []string) (SyncResult, error) {
	return s.syncEdges(ctx, from, current, false)
}

func (s *Service) syncEdges(ctx context.Context, from string, current []string, prune bool) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.SyncEdges")
	defer span.End()

	known, err := s.store.GetEdgesFrom(ctx, from)
	if err != nil {
		span.RecordError(err)
		return SyncResult{}, errors.Wrap(err, "get edges")
	}

	want := make(map[string]struct{}, len(current))
	for _, id := range current {
		if id != "" {
			want[id] = struct{}{}
		}
	}
	have := make(map[string]struct{}, len(known))
	for _, edge := range known {
		have[edge.To] = struct{}{}
	}

	var toAdd, toDelete []string
	for id := range want {
		if _, ok := have[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok && prune {
			toDelete = append(toDelete, id)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.EdgeConcurrency)
	for _, id := range toAdd {
		g.Go(func() error {
			_, err := s.store.CreateEdge(gctx, from, id)
			return err
		})
	}
	for _, id := range toDelete {
		g.Go(func() error {
			return s.store.DeleteEdge(gctx, from, id)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return SyncResult{}, errors.Wrap(err, "apply edges")
	}

	return SyncResult{Added: len(toAdd), Deleted: len(toDelete)}, nil
}

// UpdateFollowing refreshes the edges leaving fuser from its live following
// list. A rejected token is returned as a LinkError.
func (s *Service) UpdateFollowing(ctx context.Context, fuser types.ForeignUser) error {
	_, err := s.SyncFollowing(ctx, fuser)
	return err
}

// SyncFollowing is UpdateFollowing that also reports the mutations.
func (s *Service) SyncFollowing(ctx context.Context, fuser types.ForeignUser) (SyncResult, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.SyncFollowing")
	defer span.End()

	network, err := s.network(fuser.Kind)
	if err != nil {
		return SyncResult{}, err
	}

	current, err := network.Following(ctx, fuser)
	apply := s.SyncEdges
	if errors.Is(err, types.ErrTruncated) {
		s.logger.Warn("following list truncated, keeping older edges",
			slog.String("fuser", fuser.ID),
			slog.Int("count", len(current)),
		)
		apply, err = s.AddEdges, nil
	}
	if err != nil {
		span.RecordError(err)
		return SyncResult{}, linkErr(fuser, err)
	}

	result, err := apply(ctx, fuser.ID, current)
	if err != nil {
		return result, err
	}
	s.logger.Debug("following updated",
		slog.String("fuser", fuser.ID),
		slog.Int("added", result.Added),
		slog.Int("deleted", result.Deleted),
	)
	return result, nil
}

// UpdateLocalFollowing refreshes the edges leaving a local user from its
// pump.io following list.
func (s *Service) UpdateLocalFollowing(ctx context.Context, user types.LocalUser) error {
	ctx, span := tracer.Start(ctx, "Bridge.Service.UpdateLocalFollowing")
	defer span.End()

	current, err := s.local.Following(ctx, user)
	apply := s.SyncEdges
	if errors.Is(err, types.ErrTruncated) {
		s.logger.Warn("following list truncated, keeping older edges",
			slog.String("user", user.ID),
			slog.Int("count", len(current)),
		)
		apply, err = s.AddEdges, nil
	}
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "local following")
	}
	_, err = apply(ctx, user.ID, current)
	return err
}

// BeFound introduces the owner of a newly linked fuser to the local users who
// followed fuser before the link existed. Each waiter follows the owner once;
// failures are logged per waiter.
func (s *Service) BeFound(ctx context.Context, fuser types.ForeignUser) error {
	ctx, span := tracer.Start(ctx, "Bridge.Service.BeFound")
	defer span.End()

	shadow, err := s.store.GetShadow(ctx, fuser.ID)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "get shadow")
	}
	user, err := s.store.GetLocalUser(ctx, shadow.LocalID)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "get owner")
	}

	edges, err := s.store.GetEdgesTo(ctx, fuser.ID)
	if err != nil {
		return errors.Wrap(err, "get edges")
	}
	followers := make([]string, 0, len(edges))
	for _, edge := range edges {
		followers = append(followers, edge.From)
	}

	shadows, err := s.store.GetShadows(ctx, followers)
	if err != nil {
		return errors.Wrap(err, "get follower shadows")
	}

	waiters := uniqueLocalIDs(shadows, user.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(introductionConcurrency)
	for _, waiterID := range waiters {
		g.Go(func() error {
			if err := s.follow(gctx, waiterID, user.ID); err != nil {
				s.logger.Error("introduction failed",
					slog.String("user", user.ID),
					slog.String("waiter", waiterID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

// follow makes local user followerID follow local user targetID unless it
// already does.
func (s *Service) follow(ctx context.Context, followerID, targetID string) error {
	exists, err := s.store.HasEdge(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	follower, err := s.store.GetLocalUser(ctx, followerID)
	if err != nil {
		return errors.Wrap(err, "get follower")
	}
	if err := s.local.PostActivity(ctx, follower, FollowActivity(targetID)); err != nil {
		return errors.Wrap(err, "post follow")
	}
	_, err = s.store.CreateEdge(ctx, followerID, targetID)
	return err
}

// FindFriends returns the local users that fuser follows through their own
// linked accounts.
func (s *Service) FindFriends(ctx context.Context, fuser types.ForeignUser) ([]types.LocalUser, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.FindFriends")
	defer span.End()

	owner := ""
	if shadow, err := s.store.GetShadow(ctx, fuser.ID); err == nil {
		owner = shadow.LocalID
	} else if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	edges, err := s.store.GetEdgesFrom(ctx, fuser.ID)
	if err != nil {
		return nil, errors.Wrap(err, "get edges")
	}
	targets := make([]string, 0, len(edges))
	for _, edge := range edges {
		targets = append(targets, edge.To)
	}

	shadows, err := s.store.GetShadows(ctx, targets)
	if err != nil {
		return nil, errors.Wrap(err, "get shadows")
	}

	friends := []types.LocalUser{}
	for _, id := range uniqueLocalIDs(shadows, owner) {
		friend, err := s.store.GetLocalUser(ctx, id)
		if errors.Is(err, types.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		friends = append(friends, friend)
	}
	return friends, nil
}

// SaveFriends makes user follow each of ids.
func (s *Service) SaveFriends(ctx context.Context, user types.LocalUser, ids []string) error {
	ctx, span := tracer.Start(ctx, "Bridge.Service.SaveFriends")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(saveFriendsConcurrency)
	for _, id := range ids {
		if id == "" || id == user.ID {
			continue
		}
		g.Go(func() error {
			return s.follow(gctx, user.ID, id)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func uniqueLocalIDs(shadows []types.Shadow, exclude string) []string {
	seen := map[string]bool{exclude: true}
	ids := []string{}
	for _, shadow := range shadows {
		if seen[shadow.LocalID] {
			continue
		}
		seen[shadow.LocalID] = true
		ids = append(ids, shadow.LocalID)
	}
	return ids
}
