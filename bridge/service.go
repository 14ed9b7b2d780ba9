package bridge

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/e14n/pump2status/foreign"
	"github.com/e14n/pump2status/store"
	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("bridge")

// LocalNetwork is the pump.io side of the bridge.
type LocalNetwork interface {
	Host(hostname string) (types.ForeignHost, error)
	Outbox(ctx context.Context, user types.LocalUser) ([]types.Activity, error)
	PostActivity(ctx context.Context, user types.LocalUser, activity types.Activity) error
	Following(ctx context.Context, user types.LocalUser) ([]string, error)
}

// Service holds the per-account operations of the bridge.
type Service struct {
	store    *store.Store
	local    LocalNetwork
	networks foreign.Networks
	resolver *foreign.Resolver
	config   types.WorkerConfig
	logger   *slog.Logger
}

func NewService(
	store *store.Store,
	local LocalNetwork,
	networks foreign.Networks,
	resolver *foreign.Resolver,
	config types.WorkerConfig,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		local:    local,
		networks: networks,
		resolver: resolver,
		config:   config.WithDefaults(),
		logger:   logger.With(slog.String("component", "bridge")),
	}
}

func (s *Service) network(kind string) (foreign.Network, error) {
	network, ok := s.networks[kind]
	if !ok {
		return nil, &types.ValidationError{Field: "kind", Reason: "unknown network " + kind}
	}
	return network, nil
}

// linkErr turns an authorization failure for fuser into a LinkError.
func linkErr(fuser types.ForeignUser, err error) error {
	if errors.Is(err, types.ErrUnauthorized) {
		return &types.LinkError{User: fuser, Err: err}
	}
	return err
}

// Associate records that user owns fuser.
func (s *Service) Associate(ctx context.Context, user types.LocalUser, fuser types.ForeignUser) (types.Shadow, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.Associate")
	defer span.End()

	shadow, err := s.store.CreateShadow(ctx, user.ID, fuser.ID)
	if errors.Is(err, types.ErrAlreadyLinked) {
		existing, gerr := s.store.GetShadow(ctx, fuser.ID)
		if gerr == nil && existing.LocalID == user.ID {
			return existing, nil
		}
	}
	if err != nil {
		span.RecordError(err)
	}
	return shadow, err
}

// Link completes an authorization: it resolves the owner of the access
// token, links the account to user, introduces user to the local accounts
// waiting for it and imports its following list.
func (s *Service) Link(ctx context.Context, user types.LocalUser, kind string, host types.ForeignHost, token, secret string) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.Link")
	defer span.End()

	network, err := s.network(kind)
	if err != nil {
		return types.ForeignUser{}, err
	}

	profile, err := network.Whoami(ctx, host, token, secret)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, errors.Wrap(err, "whoami")
	}

	fuser, err := s.resolver.FromProfile(ctx, kind, profile, token, secret)
	if err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, err
	}

	if _, err := s.Associate(ctx, user, fuser); err != nil {
		return fuser, err
	}

	if err := s.BeFound(ctx, fuser); err != nil {
		return fuser, errors.Wrap(err, "be found")
	}

	if err := s.UpdateFollowing(ctx, fuser); err != nil {
		if le, ok := types.AsLinkError(err); ok {
			s.deleteBroken(ctx, le)
		}
		return fuser, errors.Wrap(err, "update following")
	}

	return fuser, nil
}

// LinkedAccounts returns the foreign accounts owned by localID.
func (s *Service) LinkedAccounts(ctx context.Context, localID string) ([]types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.LinkedAccounts")
	defer span.End()

	shadows, err := s.store.GetShadowsOf(ctx, localID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(shadows))
	for _, shadow := range shadows {
		ids = append(ids, shadow.ForeignID)
	}
	return s.store.GetForeignUsers(ctx, ids)
}

// OwnedAccount returns foreignID if it is linked to localID.
func (s *Service) OwnedAccount(ctx context.Context, localID, foreignID string) (types.ForeignUser, error) {
	shadow, err := s.store.GetShadow(ctx, foreignID)
	if err != nil {
		return types.ForeignUser{}, err
	}
	if shadow.LocalID != localID {
		return types.ForeignUser{}, types.ErrNotFound
	}
	return s.store.GetForeignUser(ctx, foreignID)
}

// UpdateSettings toggles autopost for an account owned by localID.
func (s *Service) UpdateSettings(ctx context.Context, localID, foreignID string, autopost bool) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "Bridge.Service.UpdateSettings")
	defer span.End()

	fuser, err := s.OwnedAccount(ctx, localID, foreignID)
	if err != nil {
		return types.ForeignUser{}, err
	}
	if err := s.store.UpdateAutopost(ctx, fuser.ID, autopost); err != nil {
		span.RecordError(err)
		return types.ForeignUser{}, err
	}
	fuser.Autopost = autopost
	return fuser, nil
}

// DeleteForeignUser removes fuser with its shadow and its outgoing edges.
func (s *Service) DeleteForeignUser(ctx context.Context, fuser types.ForeignUser) error {
	ctx, span := tracer.Start(ctx, "Bridge.Service.DeleteForeignUser")
	defer span.End()

	return s.store.DeleteForeignUser(ctx, fuser.ID)
}

func (s *Service) deleteBroken(ctx context.Context, le *types.LinkError) {
	s.logger.Warn("link broken, deleting foreign account",
		slog.String("fuser", le.User.ID),
		slog.String("error", le.Error()),
	)
	if err := s.DeleteForeignUser(ctx, le.User); err != nil {
		s.logger.Error("delete foreign account failed", slog.String("fuser", le.User.ID), slog.String("error", err.Error()))
	}
}

// HandleLinkError deletes the account carried by err when err is a LinkError.
// It reports whether it did.
func (s *Service) HandleLinkError(ctx context.Context, err error) bool {
	le, ok := types.AsLinkError(err)
	if !ok {
		return false
	}
	s.deleteBroken(ctx, le)
	return true
}

// RecordCounts stores a snapshot of the number of linked accounts per host.
func (s *Service) RecordCounts(ctx context.Context, taken time.Time) error {
	ctx, span := tracer.Start(ctx, "Bridge.Service.RecordCounts")
	defer span.End()

	counts, err := s.store.CountForeignUsersByHost(ctx)
	if err != nil {
		return err
	}
	return s.store.SaveCounts(ctx, counts, taken)
}

// Stats returns the latest count snapshot.
func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	return s.store.GetLatestStats(ctx)
}
