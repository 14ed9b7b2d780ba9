package store

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/e14n/pump2status/types"
)

var tracer = otel.Tracer("store")

const defaultScanBatch = 100

// Store is the repository for accounts, hosts, shadows and edges.
type Store struct {
	db *gorm.DB
}

// NewStore returns a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the bridge uses.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&types.LocalUser{},
		&types.ForeignUser{},
		&types.ForeignHost{},
		&types.Shadow{},
		&types.Edge{},
		&types.HostCount{},
		&types.TotalCount{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrNotFound
	}
	return err
}

// GetLocalUser returns a local user by ID.
func (s *Store) GetLocalUser(ctx context.Context, id string) (types.LocalUser, error) {
	ctx, span := tracer.Start(ctx, "StoreGetLocalUser")
	defer span.End()

	var user types.LocalUser
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&user)
	return user, notFound(result.Error)
}

// UpsertLocalUser creates a local user or refreshes its profile and credentials.
// The outbox cursor of an existing user is kept.
func (s *Store) UpsertLocalUser(ctx context.Context, user types.LocalUser) (types.LocalUser, error) {
	ctx, span := tracer.Start(ctx, "StoreUpsertLocalUser")
	defer span.End()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "avatar", "homepage", "inbox", "outbox", "following", "token", "secret", "m_date",
		}),
	}).Create(&user).Error
	if err != nil {
		return user, err
	}
	return s.GetLocalUser(ctx, user.ID)
}

// UpdateLastSeen moves the outbox cursor of a local user.
func (s *Store) UpdateLastSeen(ctx context.Context, id, lastSeen string) error {
	ctx, span := tracer.Start(ctx, "StoreUpdateLastSeen")
	defer span.End()

	return s.db.WithContext(ctx).Model(&types.LocalUser{}).Where("id = ?", id).Update("last_seen", lastSeen).Error
}

// ForEachLocalUser visits every local user in id order. The visitor runs
// outside of any open result set so it may use the store.
func (s *Store) ForEachLocalUser(ctx context.Context, fn func(types.LocalUser) error) error {
	ctx, span := tracer.Start(ctx, "StoreForEachLocalUser")
	defer span.End()

	after := ""
	for {
		var page []types.LocalUser
		err := s.db.WithContext(ctx).Where("id > ?", after).Order("id").Limit(defaultScanBatch).Find(&page).Error
		if err != nil {
			return err
		}
		for _, user := range page {
			if err := fn(user); err != nil {
				return err
			}
		}
		if len(page) < defaultScanBatch {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

// GetForeignUser returns a foreign user by ID.
func (s *Store) GetForeignUser(ctx context.Context, id string) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "StoreGetForeignUser")
	defer span.End()

	var user types.ForeignUser
	result := s.db.WithContext(ctx).Where("id = ?", id).First(&user)
	return user, notFound(result.Error)
}

// GetForeignUsers returns the foreign users among ids. Unknown ids are skipped.
func (s *Store) GetForeignUsers(ctx context.Context, ids []string) ([]types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "StoreGetForeignUsers")
	defer span.End()

	var users []types.ForeignUser
	if len(ids) == 0 {
		return users, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

// UpsertForeignUser creates a foreign user or refreshes its profile and
// credentials. Autopost of an existing user is kept.
func (s *Store) UpsertForeignUser(ctx context.Context, user types.ForeignUser) (types.ForeignUser, error) {
	ctx, span := tracer.Start(ctx, "StoreUpsertForeignUser")
	defer span.End()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "hostname", "screen_name", "id_str", "name", "avatar", "profile_url", "following", "token", "secret", "m_date",
		}),
	}).Create(&user).Error
	if err != nil {
		return user, err
	}
	return s.GetForeignUser(ctx, user.ID)
}

// UpdateAutopost toggles forwarding for a foreign user.
func (s *Store) UpdateAutopost(ctx context.Context, id string, autopost bool) error {
	ctx, span := tracer.Start(ctx, "StoreUpdateAutopost")
	defer span.End()

	result := s.db.WithContext(ctx).Model(&types.ForeignUser{}).Where("id = ?", id).Update("autopost", autopost)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

// ForEachForeignUser visits every foreign user in id order.
func (s *Store) ForEachForeignUser(ctx context.Context, fn func(types.ForeignUser) error) error {
	ctx, span := tracer.Start(ctx, "StoreForEachForeignUser")
	defer span.End()

	after := ""
	for {
		var page []types.ForeignUser
		err := s.db.WithContext(ctx).Where("id > ?", after).Order("id").Limit(defaultScanBatch).Find(&page).Error
		if err != nil {
			return err
		}
		for _, user := range page {
			if err := fn(user); err != nil {
				return err
			}
		}
		if len(page) < defaultScanBatch {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

// DeleteForeignUser removes a foreign user together with its shadow and its
// outgoing edges.
func (s *Store) DeleteForeignUser(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "StoreDeleteForeignUser")
	defer span.End()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("from_id = ?", id).Delete(&types.Edge{}).Error; err != nil {
			return errors.Wrap(err, "delete edges")
		}
		if err := tx.Where("foreign_id = ?", id).Delete(&types.Shadow{}).Error; err != nil {
			return errors.Wrap(err, "delete shadow")
		}
		if err := tx.Where("id = ?", id).Delete(&types.ForeignUser{}).Error; err != nil {
			return errors.Wrap(err, "delete foreign user")
		}
		return nil
	})
}
