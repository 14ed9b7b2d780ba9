package bridge

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/e14n/pump2status/types"
)

// ForwardResult counts the outcome of one forwarding pass for a local user.
type ForwardResult struct {
	Polled    bool
	Fetched   int
	Delivered int
	Failed    int
}

// AutopostAccounts returns the accounts linked to user that forward its posts.
func (s *Service) AutopostAccounts(ctx context.Context, user types.LocalUser) ([]types.ForeignUser, error) {
	linked, err := s.LinkedAccounts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	autos := make([]types.ForeignUser, 0, len(linked))
	for _, fuser := range linked {
		if fuser.Autopost {
			autos = append(autos, fuser)
		}
	}
	return autos, nil
}

// ForwardActivities relays the new public notes of user to each of its
// autopost accounts. The outbox is not fetched when there is no such account.
// The cursor is stored before anything is delivered.
func (s *Service) ForwardActivities(ctx context.Context, user types.LocalUser) (ForwardResult, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.ForwardActivities")
	defer span.End()

	result := ForwardResult{}

	autos, err := s.AutopostAccounts(ctx, user)
	if err != nil {
		span.RecordError(err)
		return result, errors.Wrap(err, "autopost accounts")
	}
	if len(autos) == 0 {
		return result, nil
	}

	result.Polled = true
	activities, err := s.local.Outbox(ctx, user)
	if err != nil {
		span.RecordError(err)
		return result, errors.Wrap(err, "outbox")
	}
	result.Fetched = len(activities)
	if len(activities) == 0 {
		return result, nil
	}

	if err := s.store.UpdateLastSeen(ctx, user.ID, activities[0].ID); err != nil {
		span.RecordError(err)
		return result, errors.Wrap(err, "save cursor")
	}

	// the outbox is newest first
	forwardable := []types.Activity{}
	for i := len(activities) - 1; i >= 0; i-- {
		if IsForwardable(activities[i]) {
			forwardable = append(forwardable, activities[i])
		}
	}
	if len(forwardable) == 0 {
		return result, nil
	}

	delivered := make([]int, len(autos))
	failed := make([]int, len(autos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.EdgeConcurrency)
	for i, fuser := range autos {
		g.Go(func() error {
			for _, activity := range forwardable {
				err := s.ForwardActivity(gctx, user, fuser, activity)
				if err == nil {
					delivered[i]++
					continue
				}
				failed[i]++
				if s.HandleLinkError(gctx, err) {
					return nil
				}
				s.logger.Error("forward failed",
					slog.String("user", user.ID),
					slog.String("fuser", fuser.ID),
					slog.String("activity", activity.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	err = g.Wait()

	for i := range autos {
		result.Delivered += delivered[i]
		result.Failed += failed[i]
	}
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	return result, nil
}

// ForwardActivity publishes one activity of user through fuser.
func (s *Service) ForwardActivity(ctx context.Context, user types.LocalUser, fuser types.ForeignUser, activity types.Activity) error {
	ctx, span := tracer.Start(ctx, "Bridge.Service.ForwardActivity")
	defer span.End()

	network, err := s.network(fuser.Kind)
	if err != nil {
		return err
	}
	if err := network.PostActivity(ctx, fuser, activity); err != nil {
		span.RecordError(err)
		return linkErr(fuser, err)
	}
	return nil
}
