package bridge

import (
	"context"

	"github.com/e14n/pump2status/types"
)

// Account is a local or foreign account seen through the operations the
// bridge runs on both.
type Account interface {
	AccountID() string
	GetHost(ctx context.Context) (types.ForeignHost, error)
	PostActivity(ctx context.Context, activity types.Activity) error
	UpdateFollowing(ctx context.Context) error
	FindFriends(ctx context.Context) ([]types.LocalUser, error)
	BeFound(ctx context.Context) error
}

// Local wraps a pump.io user.
func (s *Service) Local(user types.LocalUser) Account {
	return localAccount{s: s, user: user}
}

// Foreign wraps a StatusNet or Twitter user.
func (s *Service) Foreign(fuser types.ForeignUser) Account {
	return foreignAccount{s: s, user: fuser}
}

type localAccount struct {
	s    *Service
	user types.LocalUser
}

func (a localAccount) AccountID() string { return a.user.ID }

func (a localAccount) GetHost(ctx context.Context) (types.ForeignHost, error) {
	return a.s.local.Host(a.user.Hostname())
}

func (a localAccount) PostActivity(ctx context.Context, activity types.Activity) error {
	return a.s.local.PostActivity(ctx, a.user, activity)
}

func (a localAccount) UpdateFollowing(ctx context.Context) error {
	return a.s.UpdateLocalFollowing(ctx, a.user)
}

// FindFriends gathers the friends found through every linked account.
func (a localAccount) FindFriends(ctx context.Context) ([]types.LocalUser, error) {
	linked, err := a.s.LinkedAccounts(ctx, a.user.ID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{a.user.ID: true}
	friends := []types.LocalUser{}
	for _, fuser := range linked {
		found, err := a.s.FindFriends(ctx, fuser)
		if err != nil {
			return nil, err
		}
		for _, friend := range found {
			if !seen[friend.ID] {
				seen[friend.ID] = true
				friends = append(friends, friend)
			}
		}
	}
	return friends, nil
}

func (a localAccount) BeFound(ctx context.Context) error {
	linked, err := a.s.LinkedAccounts(ctx, a.user.ID)
	if err != nil {
		return err
	}
	for _, fuser := range linked {
		if err := a.s.BeFound(ctx, fuser); err != nil {
			return err
		}
	}
	return nil
}

type foreignAccount struct {
	s    *Service
	user types.ForeignUser
}

func (a foreignAccount) AccountID() string { return a.user.ID }

func (a foreignAccount) GetHost(ctx context.Context) (types.ForeignHost, error) {
	network, err := a.s.network(a.user.Kind)
	if err != nil {
		return types.ForeignHost{}, err
	}
	return network.EnsureHost(ctx, a.user.Hostname)
}

func (a foreignAccount) PostActivity(ctx context.Context, activity types.Activity) error {
	network, err := a.s.network(a.user.Kind)
	if err != nil {
		return err
	}
	return linkErr(a.user, network.PostActivity(ctx, a.user, activity))
}

func (a foreignAccount) UpdateFollowing(ctx context.Context) error {
	return a.s.UpdateFollowing(ctx, a.user)
}

func (a foreignAccount) FindFriends(ctx context.Context) ([]types.LocalUser, error) {
	return a.s.FindFriends(ctx, a.user)
}

func (a foreignAccount) BeFound(ctx context.Context) error {
	return a.s.BeFound(ctx, a.user)
}
