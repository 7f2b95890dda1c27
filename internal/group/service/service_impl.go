package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	"github.com/smallbiznis/quotedesk/internal/clock"
	"github.com/smallbiznis/quotedesk/internal/group/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	"github.com/smallbiznis/quotedesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("group.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// item is the kind-agnostic view the partition logic works on. Rows and
// assets map onto it identically.
type item struct {
	ID           snowflake.ID
	GroupID      *snowflake.ID
	SKU          string
	SerialNumber string
	Quantity     int64
	UnitPrice    string
	IsSelected   bool
	IsDuplicate  bool
}

func (s *Service) CreateGroup(ctx context.Context, scope domain.Scope, name string) (domain.Group, error) {
	if err := validateScope(scope); err != nil {
		return domain.Group{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, domain.ErrInvalidGroupName
	}
	if _, err := s.authorize(ctx, scope.VersionID); err != nil {
		return domain.Group{}, err
	}

	now := s.clock.Now()
	group := domain.Group{
		ID:             s.genID.Generate(),
		VersionID:      scope.VersionID,
		DistributionID: scope.DistributionID,
		Kind:           scope.Kind,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		return domain.Group{}, err
	}
	return group, nil
}

func (s *Service) UpdateGroup(ctx context.Context, scope domain.Scope, groupID snowflake.ID, name string) (domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, domain.ErrInvalidGroupName
	}

	group, err := s.loadGroup(ctx, scope, groupID)
	if err != nil {
		return domain.Group{}, err
	}

	group.Name = name
	group.UpdatedAt = s.clock.Now()
	if err := s.db.WithContext(ctx).Save(group).Error; err != nil {
		return domain.Group{}, err
	}
	return *group, nil
}

// DeleteGroup releases its members back to ungrouped. Items are never
// deleted with their group.
func (s *Service) DeleteGroup(ctx context.Context, scope domain.Scope, groupID snowflake.ID) error {
	group, err := s.loadGroup(ctx, scope, groupID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(s.itemModel(scope)).
			Where("group_id = ?", group.ID).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", group.ID).Delete(&domain.Group{}).Error
	})
}

// MoveItems reassigns items between two groups of the same scope. Every id
// must currently sit in the source group, otherwise nothing moves.
func (s *Service) MoveItems(ctx context.Context, req domain.MoveItemsRequest) ([]domain.GroupView, error) {
	from, err := s.loadGroup(ctx, req.Scope, req.FromGroupID)
	if err != nil {
		return nil, err
	}
	to, err := s.loadGroup(ctx, req.Scope, req.ToGroupID)
	if err != nil {
		return nil, err
	}

	items, err := s.listItems(ctx, req.Scope)
	if err != nil {
		return nil, err
	}
	inFrom := map[snowflake.ID]bool{}
	for _, it := range items {
		if it.GroupID != nil && *it.GroupID == from.ID {
			inFrom[it.ID] = true
		}
	}
	for _, id := range req.ItemIDs {
		if !inFrom[id] {
			return nil, domain.ErrItemNotInGroup
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(s.itemModel(req.Scope)).
			Where("id IN ?", req.ItemIDs).
			Update("group_id", to.ID).Error
	})
	if err != nil {
		return nil, err
	}

	fromView, err := s.renderGroup(ctx, req.Scope, from)
	if err != nil {
		return nil, err
	}
	toView, err := s.renderGroup(ctx, req.Scope, to)
	if err != nil {
		return nil, err
	}
	return []domain.GroupView{fromView, toView}, nil
}

func (s *Service) ListGroups(ctx context.Context, scope domain.Scope) ([]domain.GroupView, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, scope.VersionID); err != nil {
		return nil, err
	}

	var groups []*domain.Group
	stmt := s.db.WithContext(ctx).Where("version_id = ? AND kind = ?", scope.VersionID, scope.Kind)
	if scope.DistributionID != nil {
		stmt = stmt.Where("distribution_id = ?", *scope.DistributionID)
	}
	if err := stmt.Order("created_at, id").Find(&groups).Error; err != nil {
		return nil, err
	}

	items, err := s.listItems(ctx, scope)
	if err != nil {
		return nil, err
	}

	views := make([]domain.GroupView, 0, len(groups))
	for _, group := range groups {
		views = append(views, buildView(group, items))
	}
	return views, nil
}

// MarkExclusivity flags items whose product and serial are already covered by
// another alive quote of the same customer. It only annotates; membership and
// selection are untouched. Returns the number of items flagged.
func (s *Service) MarkExclusivity(ctx context.Context, scope domain.Scope) (int64, error) {
	if err := validateScope(scope); err != nil {
		return 0, err
	}

	quote, err := s.authorize(ctx, scope.VersionID)
	if err != nil {
		return 0, err
	}

	covered, err := s.coveredElsewhere(ctx, quote)
	if err != nil {
		return 0, err
	}

	items, err := s.listItems(ctx, scope)
	if err != nil {
		return 0, err
	}

	var flagged int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, it := range items {
			duplicate := covered[coverageKey(it.SKU, it.SerialNumber)]
			if duplicate == it.IsDuplicate {
				continue
			}
			if err := tx.Model(s.itemModel(scope)).
				Where("id = ?", it.ID).
				Update("is_duplicate", duplicate).Error; err != nil {
				return err
			}
			if duplicate {
				flagged++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if flagged > 0 {
		s.log.Info("exclusivity overlap found",
			zap.String("quote_id", quote.ID.String()),
			zap.Int64("flagged", flagged),
		)
	}
	return flagged, nil
}

// coveredElsewhere collects the sku+serial pairs covered by the active
// versions of the customer's other alive quotes.
func (s *Service) coveredElsewhere(ctx context.Context, quote *quotedomain.Quote) (map[string]bool, error) {
	var siblings []*quotedomain.Quote
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND customer_name = ? AND alive = ? AND id <> ?",
			quote.OrgID, quote.CustomerName, true, quote.ID).
		Find(&siblings).Error
	if err != nil {
		return nil, err
	}

	covered := map[string]bool{}
	for _, sibling := range siblings {
		var rows []*lineitemdomain.Row
		if err := s.db.WithContext(ctx).
			Where("version_id = ?", sibling.ActiveVersionID).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			covered[coverageKey(row.SKU, row.SerialNumber)] = true
		}

		var assets []*lineitemdomain.Asset
		if err := s.db.WithContext(ctx).
			Where("version_id = ?", sibling.ActiveVersionID).
			Find(&assets).Error; err != nil {
			return nil, err
		}
		for _, asset := range assets {
			covered[coverageKey(asset.SKU, asset.SerialNumber)] = true
		}
	}
	return covered, nil
}

// authorize resolves the scope's version back to a quote of the acting
// organization. Versions of foreign organizations read as not found.
func (s *Service) authorize(ctx context.Context, versionID snowflake.ID) (*quotedomain.Quote, error) {
	orgID, ok := actorcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, quotedomain.ErrInvalidOrganization
	}

	var version versiondomain.QuoteVersion
	if err := s.db.WithContext(ctx).Where("id = ?", versionID).First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, versiondomain.ErrVersionNotFound
		}
		return nil, err
	}

	var quote quotedomain.Quote
	if err := s.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, version.QuoteID).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, quotedomain.ErrQuoteNotFound
		}
		return nil, err
	}
	return &quote, nil
}

// loadGroup matches on the full scope, not just the version: a group created
// for one item kind is invisible through a scope of the other kind.
func (s *Service) loadGroup(ctx context.Context, scope domain.Scope, groupID snowflake.ID) (*domain.Group, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, scope.VersionID); err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).
		Where("version_id = ? AND kind = ? AND id = ?", scope.VersionID, scope.Kind, groupID)
	if scope.DistributionID != nil {
		stmt = stmt.Where("distribution_id = ?", *scope.DistributionID)
	}

	var group domain.Group
	if err := stmt.First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func (s *Service) renderGroup(ctx context.Context, scope domain.Scope, group *domain.Group) (domain.GroupView, error) {
	items, err := s.listItems(ctx, scope)
	if err != nil {
		return domain.GroupView{}, err
	}
	return buildView(group, items), nil
}

func (s *Service) listItems(ctx context.Context, scope domain.Scope) ([]item, error) {
	if scope.Kind == lineitemdomain.KindRow {
		var rows []*lineitemdomain.Row
		stmt := s.db.WithContext(ctx).Where("version_id = ?", scope.VersionID)
		if scope.DistributionID != nil {
			stmt = stmt.Where("distribution_id = ?", *scope.DistributionID)
		}
		if err := stmt.Find(&rows).Error; err != nil {
			return nil, err
		}
		items := make([]item, 0, len(rows))
		for _, row := range rows {
			items = append(items, item{
				ID:           row.ID,
				GroupID:      row.GroupID,
				SKU:          row.SKU,
				SerialNumber: row.SerialNumber,
				Quantity:     row.Quantity,
				UnitPrice:    row.UnitPrice.String(),
				IsSelected:   row.IsSelected,
				IsDuplicate:  row.IsDuplicate,
			})
		}
		return items, nil
	}

	var assets []*lineitemdomain.Asset
	err := s.db.WithContext(ctx).
		Where("version_id = ?", scope.VersionID).
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	items := make([]item, 0, len(assets))
	for _, asset := range assets {
		items = append(items, item{
			ID:           asset.ID,
			GroupID:      asset.GroupID,
			SKU:          asset.SKU,
			SerialNumber: asset.SerialNumber,
			Quantity:     asset.Quantity,
			UnitPrice:    asset.UnitPrice.String(),
			IsSelected:   asset.IsSelected,
			IsDuplicate:  asset.IsDuplicate,
		})
	}
	return items, nil
}

func (s *Service) itemModel(scope domain.Scope) any {
	if scope.Kind == lineitemdomain.KindRow {
		return &lineitemdomain.Row{}
	}
	return &lineitemdomain.Asset{}
}

func buildView(group *domain.Group, items []item) domain.GroupView {
	view := domain.GroupView{
		ID:    group.ID,
		Name:  group.Name,
		Items: []domain.ItemView{},
	}

	total := money.Zero()
	for _, it := range items {
		if it.GroupID == nil || *it.GroupID != group.ID {
			continue
		}
		view.Items = append(view.Items, domain.ItemView{
			ID:           it.ID,
			SKU:          it.SKU,
			SerialNumber: it.SerialNumber,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			IsSelected:   it.IsSelected,
			IsDuplicate:  it.IsDuplicate,
		})
		view.TotalCount++

		if !it.IsSelected || it.IsDuplicate {
			continue
		}
		price, err := money.Parse(it.UnitPrice)
		if err != nil {
			continue
		}
		lineTotal, err := money.LineTotal(price, it.Quantity)
		if err != nil {
			continue
		}
		total = total.Add(lineTotal)
	}

	view.TotalPrice = money.Display(total)
	return view
}

func coverageKey(sku, serial string) string {
	return sku + "|" + serial
}

func validateScope(scope domain.Scope) error {
	if scope.VersionID == 0 {
		return domain.ErrInvalidScope
	}
	switch scope.Kind {
	case lineitemdomain.KindRow, lineitemdomain.KindAsset:
		return nil
	default:
		return domain.ErrInvalidScope
	}
}
