package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/e14n/pump2status/types"
)

// CreateEdge records that from follows to. Recording an existing edge is a no-op.
func (s *Store) CreateEdge(ctx context.Context, from, to string) (types.Edge, error) {
	ctx, span := tracer.Start(ctx, "StoreCreateEdge")
	defer span.End()

	if from == "" {
		return types.Edge{}, &types.ValidationError{Field: "from", Reason: "empty"}
	}
	if to == "" {
		return types.Edge{}, &types.ValidationError{Field: "to", Reason: "empty"}
	}

	now := time.Now()
	edge := types.Edge{
		FromTo:   types.EdgeKey(from, to),
		From:     from,
		To:       to,
		Created:  now,
		Received: now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error
	return edge, err
}

// GetEdge returns the edge from -> to.
func (s *Store) GetEdge(ctx context.Context, from, to string) (types.Edge, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEdge")
	defer span.End()

	var edge types.Edge
	result := s.db.WithContext(ctx).Where("from_to = ?", types.EdgeKey(from, to)).First(&edge)
	return edge, notFound(result.Error)
}

// HasEdge reports whether from follows to.
func (s *Store) HasEdge(ctx context.Context, from, to string) (bool, error) {
	ctx, span := tracer.Start(ctx, "StoreHasEdge")
	defer span.End()

	var count int64
	err := s.db.WithContext(ctx).Model(&types.Edge{}).Where("from_to = ?", types.EdgeKey(from, to)).Count(&count).Error
	return count > 0, err
}

// DeleteEdge removes the edge from -> to.
func (s *Store) DeleteEdge(ctx context.Context, from, to string) error {
	ctx, span := tracer.Start(ctx, "StoreDeleteEdge")
	defer span.End()

	return s.db.WithContext(ctx).Where("from_to = ?", types.EdgeKey(from, to)).Delete(&types.Edge{}).Error
}

// GetEdgesFrom returns every edge leaving from.
func (s *Store) GetEdgesFrom(ctx context.Context, from string) ([]types.Edge, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEdgesFrom")
	defer span.End()

	var edges []types.Edge
	err := s.db.WithContext(ctx).Where("from_id = ?", from).Order("to_id").Find(&edges).Error
	return edges, err
}

// GetEdgesTo returns every edge pointing at to.
func (s *Store) GetEdgesTo(ctx context.Context, to string) ([]types.Edge, error) {
	ctx, span := tracer.Start(ctx, "StoreGetEdgesTo")
	defer span.End()

	var edges []types.Edge
	err := s.db.WithContext(ctx).Where("to_id = ?", to).Order("from_id").Find(&edges).Error
	return edges, err
}
