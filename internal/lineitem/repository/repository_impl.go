package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListDistributions(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*domain.Distribution, error) {
	var distributions []*domain.Distribution
	err := db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("created_at, id").
		Find(&distributions).Error
	if err != nil {
		return nil, err
	}
	return distributions, nil
}

func (r *repo) ListRowsByVersion(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*domain.Row, error) {
	var rows []*domain.Row
	err := db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListAssetsByVersion(ctx context.Context, db *gorm.DB, versionID snowflake.ID) ([]*domain.Asset, error) {
	var assets []*domain.Asset
	err := db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("created_at, id").
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}
