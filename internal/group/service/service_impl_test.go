package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	"github.com/smallbiznis/quotedesk/internal/clock"
	"github.com/smallbiznis/quotedesk/internal/group/domain"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	"github.com/smallbiznis/quotedesk/internal/migration"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	testTime = time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	testOrg  = snowflake.ID(42)
)

func newGroupService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:group_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(testTime),
	})
	return svc, db, node
}

func actorCtx() context.Context {
	return actorcontext.WithActor(context.Background(), testOrg, snowflake.ID(7))
}

func seedQuoteVersion(t *testing.T, db *gorm.DB, node *snowflake.Node, customer string, number int64) (*quotedomain.Quote, snowflake.ID) {
	t.Helper()

	versionID := node.Generate()
	quoteID := node.Generate()
	require.NoError(t, db.Create(&versiondomain.QuoteVersion{
		ID:       versionID,
		QuoteID:  quoteID,
		AuthorID: snowflake.ID(7),
		Revision: 1,
		Name:     fmt.Sprintf("EQ-%d/1", number),
		Currency: "USD",
		Payloads: datatypes.JSONMap{},
		IsActive: true,
	}).Error)
	quote := &quotedomain.Quote{
		ID:              quoteID,
		OrgID:           testOrg,
		OwnerID:         snowflake.ID(7),
		QuoteNumber:     number,
		ContractType:    quotedomain.ContractTypePack,
		CustomerName:    customer,
		CustomerCountry: "US",
		ActiveVersionID: versionID,
		Alive:           true,
		Active:          true,
	}
	require.NoError(t, db.Create(quote).Error)
	return quote, versionID
}

type assetSpec struct {
	sku       string
	serial    string
	quantity  int64
	unitPrice string
	selected  bool
	duplicate bool
	groupID   *snowflake.ID
}

func seedAsset(t *testing.T, db *gorm.DB, node *snowflake.Node, versionID snowflake.ID, spec assetSpec) *lineitemdomain.Asset {
	t.Helper()

	asset := &lineitemdomain.Asset{
		ID:           node.Generate(),
		VersionID:    versionID,
		GroupID:      spec.groupID,
		SKU:          spec.sku,
		SerialNumber: spec.serial,
		Quantity:     spec.quantity,
		UnitPrice:    decimal.RequireFromString(spec.unitPrice),
		IsSelected:   spec.selected,
		IsDuplicate:  spec.duplicate,
	}
	require.NoError(t, db.Create(asset).Error)
	if !spec.selected {
		// The default:true tag makes gorm drop a zero-value IsSelected on
		// insert, so persist the false explicitly.
		require.NoError(t, db.Model(asset).Update("is_selected", false).Error)
	}
	return asset
}

func assetScope(versionID snowflake.ID) domain.Scope {
	return domain.Scope{VersionID: versionID, Kind: lineitemdomain.KindAsset}
}

func TestCreateGroupValidation(t *testing.T) {
	svc, _, node := newGroupService(t)
	scope := assetScope(node.Generate())

	// Scope and name validation run before any lookup.
	_, err := svc.CreateGroup(context.Background(), scope, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidGroupName)

	_, err = svc.CreateGroup(context.Background(), domain.Scope{Kind: lineitemdomain.KindAsset}, "servers")
	assert.ErrorIs(t, err, domain.ErrInvalidScope)

	_, err = svc.CreateGroup(context.Background(), domain.Scope{VersionID: node.Generate(), Kind: "other"}, "servers")
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
}

func TestMoveItemsBetweenGroups(t *testing.T) {
	svc, db, node := newGroupService(t)
	ctx := actorCtx()
	_, versionID := seedQuoteVersion(t, db, node, "Globex", 100001)
	scope := assetScope(versionID)

	from, err := svc.CreateGroup(ctx, scope, "servers")
	require.NoError(t, err)
	to, err := svc.CreateGroup(ctx, scope, "storage")
	require.NoError(t, err)

	moved := seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "SRV-1", quantity: 1, unitPrice: "100", selected: true, groupID: &from.ID})
	stays := seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "SRV-2", quantity: 1, unitPrice: "200", selected: true, groupID: &from.ID})
	loose := seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "SRV-3", quantity: 1, unitPrice: "300", selected: true})

	views, err := svc.MoveItems(ctx, domain.MoveItemsRequest{
		Scope:       scope,
		FromGroupID: from.ID,
		ToGroupID:   to.ID,
		ItemIDs:     []snowflake.ID{moved.ID},
	})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[0].TotalCount)
	assert.Equal(t, 1, views[1].TotalCount)

	var reloaded lineitemdomain.Asset
	require.NoError(t, db.Where("id = ?", moved.ID).First(&reloaded).Error)
	require.NotNil(t, reloaded.GroupID)
	assert.Equal(t, to.ID, *reloaded.GroupID)
	reloaded = lineitemdomain.Asset{}
	require.NoError(t, db.Where("id = ?", stays.ID).First(&reloaded).Error)
	require.NotNil(t, reloaded.GroupID)
	assert.Equal(t, from.ID, *reloaded.GroupID)

	// Moving an item that is not in the source group moves nothing.
	_, err = svc.MoveItems(ctx, domain.MoveItemsRequest{
		Scope:       scope,
		FromGroupID: from.ID,
		ToGroupID:   to.ID,
		ItemIDs:     []snowflake.ID{loose.ID},
	})
	assert.ErrorIs(t, err, domain.ErrItemNotInGroup)
}

func TestDeleteGroupReleasesMembers(t *testing.T) {
	svc, db, node := newGroupService(t)
	ctx := actorCtx()
	_, versionID := seedQuoteVersion(t, db, node, "Globex", 100001)
	scope := assetScope(versionID)

	group, err := svc.CreateGroup(ctx, scope, "servers")
	require.NoError(t, err)
	member := seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "SRV-1", quantity: 1, unitPrice: "100", selected: true, groupID: &group.ID})

	require.NoError(t, svc.DeleteGroup(ctx, scope, group.ID))

	var reloaded lineitemdomain.Asset
	require.NoError(t, db.Where("id = ?", member.ID).First(&reloaded).Error)
	assert.Nil(t, reloaded.GroupID)

	_, err = svc.UpdateGroup(ctx, scope, group.ID, "renamed")
	assert.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestDeleteGroupRequiresMatchingKind(t *testing.T) {
	svc, db, node := newGroupService(t)
	ctx := actorCtx()
	_, versionID := seedQuoteVersion(t, db, node, "Globex", 100001)
	rowScope := domain.Scope{VersionID: versionID, Kind: lineitemdomain.KindRow}

	group, err := svc.CreateGroup(ctx, rowScope, "servers")
	require.NoError(t, err)

	distribution := &lineitemdomain.Distribution{
		ID:         node.Generate(),
		VersionID:  versionID,
		VendorName: "acme",
		Currency:   "USD",
	}
	require.NoError(t, db.Create(distribution).Error)
	row := &lineitemdomain.Row{
		ID:             node.Generate(),
		VersionID:      versionID,
		DistributionID: distribution.ID,
		GroupID:        &group.ID,
		SKU:            "SRV-1",
		Quantity:       1,
		UnitPrice:      decimal.RequireFromString("100"),
		IsSelected:     true,
	}
	require.NoError(t, db.Create(row).Error)

	// The rows-kind group is invisible through an asset-kind scope.
	err = svc.DeleteGroup(ctx, assetScope(versionID), group.ID)
	assert.ErrorIs(t, err, domain.ErrGroupNotFound)

	var reloaded lineitemdomain.Row
	require.NoError(t, db.Where("id = ?", row.ID).First(&reloaded).Error)
	require.NotNil(t, reloaded.GroupID)
	assert.Equal(t, group.ID, *reloaded.GroupID)

	var count int64
	require.NoError(t, db.Model(&domain.Group{}).Where("id = ?", group.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGroupsScopedToOrganization(t *testing.T) {
	svc, db, node := newGroupService(t)
	_, versionID := seedQuoteVersion(t, db, node, "Globex", 100001)

	foreign := actorcontext.WithActor(context.Background(), snowflake.ID(999), snowflake.ID(7))
	_, err := svc.CreateGroup(foreign, assetScope(versionID), "servers")
	assert.ErrorIs(t, err, quotedomain.ErrQuoteNotFound)

	_, err = svc.ListGroups(context.Background(), assetScope(versionID))
	assert.ErrorIs(t, err, quotedomain.ErrInvalidOrganization)

	_, err = svc.CreateGroup(actorCtx(), assetScope(node.Generate()), "servers")
	assert.ErrorIs(t, err, versiondomain.ErrVersionNotFound)
}

func TestGroupTotalsCountSelectedNonDuplicates(t *testing.T) {
	svc, db, node := newGroupService(t)
	ctx := actorCtx()
	_, versionID := seedQuoteVersion(t, db, node, "Globex", 100001)
	scope := assetScope(versionID)

	group, err := svc.CreateGroup(ctx, scope, "servers")
	require.NoError(t, err)
	seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "A", quantity: 2, unitPrice: "10.50", selected: true, groupID: &group.ID})
	seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "B", quantity: 1, unitPrice: "5.00", selected: false, groupID: &group.ID})
	seedAsset(t, db, node, scope.VersionID, assetSpec{sku: "C", quantity: 1, unitPrice: "7.00", selected: true, duplicate: true, groupID: &group.ID})

	views, err := svc.ListGroups(ctx, scope)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 3, views[0].TotalCount)
	assert.Equal(t, "21.00", views[0].TotalPrice)
}

func TestMarkExclusivityFlagsCoveredItems(t *testing.T) {
	svc, db, node := newGroupService(t)
	ctx := actorCtx()

	_, currentVersion := seedQuoteVersion(t, db, node, "Globex", 100001)
	_, siblingVersion := seedQuoteVersion(t, db, node, "Globex", 100002)

	// The sibling quote already covers SRV-1/SN9.
	seedAsset(t, db, node, siblingVersion, assetSpec{sku: "SRV-1", serial: "SN9", quantity: 1, unitPrice: "100", selected: true})

	overlapping := seedAsset(t, db, node, currentVersion, assetSpec{sku: "SRV-1", serial: "SN9", quantity: 1, unitPrice: "100", selected: true})
	unique := seedAsset(t, db, node, currentVersion, assetSpec{sku: "SRV-2", serial: "SN1", quantity: 1, unitPrice: "100", selected: true})

	flagged, err := svc.MarkExclusivity(ctx, assetScope(currentVersion))
	require.NoError(t, err)
	assert.Equal(t, int64(1), flagged)

	var reloaded lineitemdomain.Asset
	require.NoError(t, db.Where("id = ?", overlapping.ID).First(&reloaded).Error)
	assert.True(t, reloaded.IsDuplicate)
	reloaded = lineitemdomain.Asset{}
	require.NoError(t, db.Where("id = ?", unique.ID).First(&reloaded).Error)
	assert.False(t, reloaded.IsDuplicate)

	// Annotation only; selection is untouched and a re-run changes nothing.
	flagged, err = svc.MarkExclusivity(ctx, assetScope(currentVersion))
	require.NoError(t, err)
	assert.Equal(t, int64(0), flagged)
}
