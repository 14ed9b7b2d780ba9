package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/e14n/pump2status/types"
)

// GetHost returns a foreign host by hostname.
func (s *Store) GetHost(ctx context.Context, hostname string) (types.ForeignHost, error) {
	ctx, span := tracer.Start(ctx, "StoreGetHost")
	defer span.End()

	var host types.ForeignHost
	result := s.db.WithContext(ctx).Where("hostname = ?", strings.ToLower(hostname)).First(&host)
	return host, notFound(result.Error)
}

// CreateHost stores a discovered host. When another writer stored the same
// hostname first, the existing record is returned instead.
func (s *Store) CreateHost(ctx context.Context, host types.ForeignHost) (types.ForeignHost, error) {
	ctx, span := tracer.Start(ctx, "StoreCreateHost")
	defer span.End()

	host.Hostname = strings.ToLower(host.Hostname)
	err := s.db.WithContext(ctx).Create(&host).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return s.GetHost(ctx, host.Hostname)
	}
	return host, err
}

// ListHosts returns every known foreign host.
func (s *Store) ListHosts(ctx context.Context) ([]types.ForeignHost, error) {
	ctx, span := tracer.Start(ctx, "StoreListHosts")
	defer span.End()

	var hosts []types.ForeignHost
	err := s.db.WithContext(ctx).Order("hostname").Find(&hosts).Error
	return hosts, err
}
