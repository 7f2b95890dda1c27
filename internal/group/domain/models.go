package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	"gorm.io/gorm"
)

// Group is a named partition of line items within one scope. Membership is
// recorded on the items (group_id); totals are always derived.
type Group struct {
	ID             snowflake.ID            `gorm:"primaryKey" json:"id"`
	VersionID      snowflake.ID            `gorm:"not null;index" json:"version_id"`
	DistributionID *snowflake.ID           `gorm:"index" json:"distribution_id,omitempty"`
	Kind           lineitemdomain.ItemKind `gorm:"not null" json:"kind"`
	Name           string                  `gorm:"not null" json:"name"`
	CreatedAt      time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt      gorm.DeletedAt          `gorm:"index" json:"-"`
}

// TableName avoids the reserved word "groups".
func (Group) TableName() string {
	return "item_groups"
}

// Scope identifies the item set a partition operates on: a version's assets,
// or one distribution's rows.
type Scope struct {
	VersionID      snowflake.ID
	DistributionID *snowflake.ID
	Kind           lineitemdomain.ItemKind
}

type ItemView struct {
	ID           snowflake.ID `json:"id"`
	SKU          string       `json:"sku"`
	SerialNumber string       `json:"serial_number,omitempty"`
	Quantity     int64        `json:"quantity"`
	UnitPrice    string       `json:"unit_price"`
	IsSelected   bool         `json:"is_selected"`
	IsDuplicate  bool         `json:"is_duplicate"`
}

// GroupView is the rendered partition. TotalPrice counts selected,
// non-duplicate items only, matching the top-level list price rule.
type GroupView struct {
	ID         snowflake.ID `json:"id"`
	Name       string       `json:"name"`
	TotalCount int          `json:"total_count"`
	TotalPrice string       `json:"total_price"`
	Items      []ItemView   `json:"items"`
}

type MoveItemsRequest struct {
	Scope       Scope
	FromGroupID snowflake.ID
	ToGroupID   snowflake.ID
	ItemIDs     []snowflake.ID
}

type Service interface {
	CreateGroup(ctx context.Context, scope Scope, name string) (Group, error)
	UpdateGroup(ctx context.Context, scope Scope, groupID snowflake.ID, name string) (Group, error)
	DeleteGroup(ctx context.Context, scope Scope, groupID snowflake.ID) error
	MoveItems(ctx context.Context, req MoveItemsRequest) ([]GroupView, error)
	ListGroups(ctx context.Context, scope Scope) ([]GroupView, error)
	MarkExclusivity(ctx context.Context, scope Scope) (int64, error)
}

var (
	ErrGroupNotFound    = errors.New("group_not_found")
	ErrItemNotInGroup   = errors.New("item_not_in_group")
	ErrInvalidGroupName = errors.New("invalid_group_name")
	ErrInvalidScope     = errors.New("invalid_scope")
)
