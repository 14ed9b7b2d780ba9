package store

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/e14n/pump2status/types"
)

// CreateShadow links foreignID to localID. A foreign account can be linked once.
func (s *Store) CreateShadow(ctx context.Context, localID, foreignID string) (types.Shadow, error) {
	ctx, span := tracer.Start(ctx, "StoreCreateShadow")
	defer span.End()

	if localID == "" {
		return types.Shadow{}, &types.ValidationError{Field: "localID", Reason: "empty"}
	}
	if foreignID == "" {
		return types.Shadow{}, &types.ValidationError{Field: "foreignID", Reason: "empty"}
	}

	shadow := types.Shadow{ForeignID: foreignID, LocalID: localID}
	err := s.db.WithContext(ctx).Create(&shadow).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shadow, types.ErrAlreadyLinked
	}
	return shadow, err
}

// GetShadow returns the shadow of a foreign account.
func (s *Store) GetShadow(ctx context.Context, foreignID string) (types.Shadow, error) {
	ctx, span := tracer.Start(ctx, "StoreGetShadow")
	defer span.End()

	var shadow types.Shadow
	result := s.db.WithContext(ctx).Where("foreign_id = ?", foreignID).First(&shadow)
	return shadow, notFound(result.Error)
}

// GetShadows returns the shadows of the given foreign accounts. Accounts
// without a shadow are skipped.
func (s *Store) GetShadows(ctx context.Context, foreignIDs []string) ([]types.Shadow, error) {
	ctx, span := tracer.Start(ctx, "StoreGetShadows")
	defer span.End()

	var shadows []types.Shadow
	if len(foreignIDs) == 0 {
		return shadows, nil
	}
	err := s.db.WithContext(ctx).Where("foreign_id IN ?", foreignIDs).Order("foreign_id").Find(&shadows).Error
	return shadows, err
}

// GetShadowsOf returns every shadow owned by a local account.
func (s *Store) GetShadowsOf(ctx context.Context, localID string) ([]types.Shadow, error) {
	ctx, span := tracer.Start(ctx, "StoreGetShadowsOf")
	defer span.End()

	var shadows []types.Shadow
	err := s.db.WithContext(ctx).Where("local_id = ?", localID).Order("foreign_id").Find(&shadows).Error
	return shadows, err
}
