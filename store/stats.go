package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/e14n/pump2status/types"
)

// CountForeignUsersByHost returns the number of foreign users per hostname.
func (s *Store) CountForeignUsersByHost(ctx context.Context) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "StoreCountForeignUsersByHost")
	defer span.End()

	var rows []struct {
		Hostname string
		Count    int64
	}
	err := s.db.WithContext(ctx).Model(&types.ForeignUser{}).
		Select("hostname, count(*) as count").
		Group("hostname").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Hostname] = row.Count
	}
	return counts, nil
}

// SaveCounts records one snapshot of per-host counts and their total.
func (s *Store) SaveCounts(ctx context.Context, counts map[string]int64, taken time.Time) error {
	ctx, span := tracer.Start(ctx, "StoreSaveCounts")
	defer span.End()

	snapshot := uuid.NewString()
	total := types.TotalCount{Snapshot: snapshot, Taken: taken}
	hosts := make([]types.HostCount, 0, len(counts))
	for hostname, count := range counts {
		hosts = append(hosts, types.HostCount{Snapshot: snapshot, Hostname: hostname, Count: count, Taken: taken})
		total.Count += count
	}

	db := s.db.WithContext(ctx)
	if len(hosts) > 0 {
		if err := db.Create(&hosts).Error; err != nil {
			return err
		}
	}
	return db.Create(&total).Error
}

// GetLatestStats returns the most recent snapshot.
func (s *Store) GetLatestStats(ctx context.Context) (types.Stats, error) {
	ctx, span := tracer.Start(ctx, "StoreGetLatestStats")
	defer span.End()

	var total types.TotalCount
	err := s.db.WithContext(ctx).Order("id desc").Limit(1).Find(&total).Error
	if err != nil {
		return types.Stats{}, err
	}
	if total.ID == 0 {
		return types.Stats{Hosts: []types.HostCount{}}, nil
	}

	var hosts []types.HostCount
	err = s.db.WithContext(ctx).Where("snapshot = ?", total.Snapshot).Order("hostname").Find(&hosts).Error
	if err != nil {
		return types.Stats{}, err
	}
	return types.Stats{Total: total.Count, Hosts: hosts}, nil
}
