package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	groupdomain "github.com/smallbiznis/quotedesk/internal/group/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	"github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	"gorm.io/gorm"
)

// Repository is the version store plus the tree copy used for branching.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, version *domain.QuoteVersion) error
	Update(ctx context.Context, db *gorm.DB, version *domain.QuoteVersion) error
	FindByID(ctx context.Context, db *gorm.DB, quoteID, versionID snowflake.ID) (*domain.QuoteVersion, error)
	FindActive(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*domain.QuoteVersion, error)
	List(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]*domain.QuoteVersion, error)
	MaxRevision(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (int, error)
	SetActive(ctx context.Context, db *gorm.DB, quoteID, versionID snowflake.ID) error
	SoftDelete(ctx context.Context, db *gorm.DB, versionID snowflake.ID) error
	CopyTree(ctx context.Context, db *gorm.DB, fromVersionID, toVersionID snowflake.ID, genID *snowflake.Node) error
	DeleteTree(ctx context.Context, db *gorm.DB, versionID snowflake.ID) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, version *domain.QuoteVersion) error {
	return db.WithContext(ctx).Create(version).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, version *domain.QuoteVersion) error {
	return db.WithContext(ctx).Save(version).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, quoteID, versionID snowflake.ID) (*domain.QuoteVersion, error) {
	var version domain.QuoteVersion
	err := db.WithContext(ctx).
		Where("quote_id = ? AND id = ?", quoteID, versionID).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (*domain.QuoteVersion, error) {
	var version domain.QuoteVersion
	err := db.WithContext(ctx).
		Where("quote_id = ? AND is_active = ?", quoteID, true).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &version, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) ([]*domain.QuoteVersion, error) {
	var versions []*domain.QuoteVersion
	err := db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("revision").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *repo) MaxRevision(ctx context.Context, db *gorm.DB, quoteID snowflake.ID) (int, error) {
	var max int
	err := db.WithContext(ctx).
		Model(&domain.QuoteVersion{}).
		Where("quote_id = ?", quoteID).
		Select("COALESCE(MAX(revision), 0)").
		Scan(&max).Error
	return max, err
}

// SetActive flips the active flag atomically within the caller's transaction.
func (r *repo) SetActive(ctx context.Context, db *gorm.DB, quoteID, versionID snowflake.ID) error {
	if err := db.WithContext(ctx).
		Model(&domain.QuoteVersion{}).
		Where("quote_id = ? AND is_active = ?", quoteID, true).
		Update("is_active", false).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).
		Model(&domain.QuoteVersion{}).
		Where("quote_id = ? AND id = ?", quoteID, versionID).
		Update("is_active", true).Error
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, versionID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("id = ?", versionID).
		Delete(&domain.QuoteVersion{}).Error
}

// CopyTree duplicates groups, distributions, rows and assets of one version
// under fresh ids belonging to another. Group membership and distribution
// ownership are remapped so the copies form an independent tree.
func (r *repo) CopyTree(ctx context.Context, db *gorm.DB, fromVersionID, toVersionID snowflake.ID, genID *snowflake.Node) error {
	groupIDs := map[snowflake.ID]snowflake.ID{}
	var groups []*groupdomain.Group
	if err := db.WithContext(ctx).Where("version_id = ?", fromVersionID).Find(&groups).Error; err != nil {
		return err
	}
	for _, g := range groups {
		copied := *g
		copied.ID = genID.Generate()
		copied.VersionID = toVersionID
		groupIDs[g.ID] = copied.ID
		if err := db.WithContext(ctx).Create(&copied).Error; err != nil {
			return err
		}
	}

	distributionIDs := map[snowflake.ID]snowflake.ID{}
	var distributions []*lineitemdomain.Distribution
	if err := db.WithContext(ctx).Where("version_id = ?", fromVersionID).Find(&distributions).Error; err != nil {
		return err
	}
	for _, d := range distributions {
		copied := *d
		copied.ID = genID.Generate()
		copied.VersionID = toVersionID
		distributionIDs[d.ID] = copied.ID
		if err := db.WithContext(ctx).Create(&copied).Error; err != nil {
			return err
		}
	}

	// Group copies carry a distribution reference too.
	for _, g := range groups {
		if g.DistributionID == nil {
			continue
		}
		mapped, ok := distributionIDs[*g.DistributionID]
		if !ok {
			continue
		}
		newGroupID := groupIDs[g.ID]
		if err := db.WithContext(ctx).
			Model(&groupdomain.Group{}).
			Where("id = ?", newGroupID).
			Update("distribution_id", mapped).Error; err != nil {
			return err
		}
	}

	var rows []*lineitemdomain.Row
	if err := db.WithContext(ctx).Where("version_id = ?", fromVersionID).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		copied := *row
		copied.ID = genID.Generate()
		copied.VersionID = toVersionID
		if mapped, ok := distributionIDs[row.DistributionID]; ok {
			copied.DistributionID = mapped
		}
		copied.GroupID = remapGroup(row.GroupID, groupIDs)
		if err := db.WithContext(ctx).Create(&copied).Error; err != nil {
			return err
		}
	}

	var assets []*lineitemdomain.Asset
	if err := db.WithContext(ctx).Where("version_id = ?", fromVersionID).Find(&assets).Error; err != nil {
		return err
	}
	for _, asset := range assets {
		copied := *asset
		copied.ID = genID.Generate()
		copied.VersionID = toVersionID
		copied.GroupID = remapGroup(asset.GroupID, groupIDs)
		if err := db.WithContext(ctx).Create(&copied).Error; err != nil {
			return err
		}
	}

	return nil
}

// DeleteTree removes a version's owned groups and line items. Sibling
// versions hold independent copies and are never touched.
func (r *repo) DeleteTree(ctx context.Context, db *gorm.DB, versionID snowflake.ID) error {
	if err := db.WithContext(ctx).Where("version_id = ?", versionID).Delete(&lineitemdomain.Row{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("version_id = ?", versionID).Delete(&lineitemdomain.Asset{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("version_id = ?", versionID).Delete(&lineitemdomain.Distribution{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("version_id = ?", versionID).Delete(&groupdomain.Group{}).Error
}

func remapGroup(groupID *snowflake.ID, mapping map[snowflake.ID]snowflake.ID) *snowflake.ID {
	if groupID == nil {
		return nil
	}
	if mapped, ok := mapping[*groupID]; ok {
		return &mapped
	}
	return nil
}
