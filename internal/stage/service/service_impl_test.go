package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	catalogdomain "github.com/smallbiznis/quotedesk/internal/catalog/domain"
	catalogservice "github.com/smallbiznis/quotedesk/internal/catalog/service"
	"github.com/smallbiznis/quotedesk/internal/importer"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	lineitemrepository "github.com/smallbiznis/quotedesk/internal/lineitem/repository"
	"github.com/smallbiznis/quotedesk/internal/migration"
	"github.com/smallbiznis/quotedesk/internal/pricing"
	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	versionrepository "github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"github.com/smallbiznis/quotedesk/internal/stage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var testTime = time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newStageService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:stage_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		VersionRepo:  versionrepository.Provide(),
		LineItemRepo: lineitemrepository.Provide(),
		Catalog:      catalogservice.New(catalogservice.Params{DB: db, Log: zap.NewNop()}),
	})
	return svc, db, node
}

func seedWorkflow(t *testing.T, db *gorm.DB, node *snowflake.Node, contractType quotedomain.ContractType) (*quotedomain.Quote, *versiondomain.QuoteVersion) {
	t.Helper()

	quoteID := node.Generate()
	version := &versiondomain.QuoteVersion{
		ID:        node.Generate(),
		QuoteID:   quoteID,
		AuthorID:  snowflake.ID(7),
		Revision:  1,
		Name:      "EQ-100001/1",
		Currency:  "USD",
		Payloads:  datatypes.JSONMap{},
		IsActive:  true,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	require.NoError(t, db.Create(version).Error)

	quote := &quotedomain.Quote{
		ID:              quoteID,
		OrgID:           snowflake.ID(42),
		OwnerID:         snowflake.ID(7),
		QuoteNumber:     100001,
		ContractType:    contractType,
		CustomerName:    "Globex",
		CustomerCountry: "US",
		ActiveVersionID: version.ID,
		Alive:           true,
		Active:          true,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
	}
	require.NoError(t, db.Create(quote).Error)
	return quote, version
}

func setupPayload() domain.SetupPayload {
	return domain.SetupPayload{VendorName: "acme", Country: "US"}
}

func importPayload(prices ...string) domain.ImportPayload {
	payload := domain.ImportPayload{VendorName: "acme", FileName: "schedule.xlsx"}
	for _, price := range prices {
		payload.Rows = append(payload.Rows, importer.ImportedRow{
			SKU:       "SRV-100",
			Quantity:  1,
			UnitPrice: price,
			Selected:  true,
		})
	}
	return payload
}

func workflowCtx() context.Context {
	return actorcontext.WithActor(context.Background(), snowflake.ID(42), snowflake.ID(7))
}

func TestMarginBeforeSetupRejected(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)

	_, err := svc.ProcessMargin(workflowCtx(), quote.ID, version.ID, domain.MarginPayload{MarginPct: dec("10")})
	assert.ErrorIs(t, err, domain.ErrStageOrder)
}

func TestAssetsStageNotInContractFlow(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)

	_, err := svc.ProcessAssets(workflowCtx(), quote.ID, version.ID, domain.AssetsPayload{})
	assert.ErrorIs(t, err, domain.ErrStageNotInFlow)
}

func TestImportReplacesVendorRows(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)

	result, err := svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("100", "250.50"))
	require.NoError(t, err)
	assert.Equal(t, domain.StageImport, result.CompletedStage)

	var count int64
	require.NoError(t, db.Model(&lineitemdomain.Row{}).Where("version_id = ?", version.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Re-importing the same vendor swaps the schedule instead of appending.
	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("300"))
	require.NoError(t, err)
	require.NoError(t, db.Model(&lineitemdomain.Row{}).Where("version_id = ?", version.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&lineitemdomain.Distribution{}).Where("version_id = ?", version.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestImportRejectsUnparsablePrice(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)

	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("not-a-price"))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestCompletedStageNeverRegresses(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)
	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("100"))
	require.NoError(t, err)

	// Redoing setup is allowed but does not move the workflow backwards.
	result, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)
	assert.Equal(t, domain.StageImport, result.CompletedStage)

	var reloaded versiondomain.QuoteVersion
	require.NoError(t, db.Where("id = ?", version.ID).First(&reloaded).Error)
	assert.Equal(t, string(domain.StageImport), reloaded.CompletedStage)
}

func TestSubmittedQuoteRejectsStages(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	require.NoError(t, db.Model(&quotedomain.Quote{}).Where("id = ?", quote.ID).Update("submitted_at", testTime).Error)

	_, err := svc.ProcessSetup(workflowCtx(), quote.ID, version.ID, setupPayload())
	assert.ErrorIs(t, err, domain.ErrVersionSubmitted)
}

func TestMarginFromCountryCatalog(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	require.NoError(t, db.Create(&catalogdomain.CountryMargin{
		ID:         node.Generate(),
		OrgID:      quote.OrgID,
		Country:    "US",
		VendorName: "acme",
		QuoteType:  "contract",
		MarginPct:  dec("15"),
		TaxPct:     dec("7"),
	}).Error)

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)
	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("1000"))
	require.NoError(t, err)

	result, err := svc.ProcessMargin(ctx, quote.ID, version.ID, domain.MarginPayload{UseCountryDefault: true})
	require.NoError(t, err)

	var reloaded versiondomain.QuoteVersion
	require.NoError(t, db.Where("id = ?", version.ID).First(&reloaded).Error)
	assert.True(t, reloaded.MarginPct.Equal(dec("15")))
	assert.True(t, reloaded.TaxPct.Equal(dec("7")))

	// 1000 buy price, 150 margin, 7% tax on 1150.
	require.NotNil(t, result.Summary)
	assert.True(t, result.Summary.BuyPrice.Equal(dec("1000")))
	assert.True(t, result.Summary.FinalTotalPrice.Equal(dec("1230.5")))
}

func TestUnknownDiscountRejected(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)
	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("1000"))
	require.NoError(t, err)
	_, err = svc.ProcessMargin(ctx, quote.ID, version.ID, domain.MarginPayload{MarginPct: dec("10")})
	require.NoError(t, err)

	_, err = svc.ProcessDiscount(ctx, quote.ID, version.ID, domain.DiscountPayload{
		Choices: []domain.DiscountChoice{{DefinitionID: node.Generate()}},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownDiscount)
}

func TestDiscountRepricesVersion(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	definition := &catalogdomain.DiscountDefinition{
		ID:         node.Generate(),
		OrgID:      quote.OrgID,
		Kind:       pricing.DiscountMultiYear,
		Country:    "US",
		VendorName: "acme",
		Years:      3,
		ValuePct:   dec("10"),
	}
	require.NoError(t, db.Create(definition).Error)

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)
	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("1000"))
	require.NoError(t, err)
	_, err = svc.ProcessMargin(ctx, quote.ID, version.ID, domain.MarginPayload{MarginPct: dec("10")})
	require.NoError(t, err)

	result, err := svc.ProcessDiscount(ctx, quote.ID, version.ID, domain.DiscountPayload{
		Choices: []domain.DiscountChoice{{DefinitionID: definition.ID}},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Summary)
	require.Len(t, result.Summary.Applied, 1)
	assert.Equal(t, pricing.DiscountMultiYear, result.Summary.Applied[0].Kind)
	assert.True(t, result.Summary.BuyPrice.Equal(dec("900")))
	assert.True(t, result.Summary.TotalDiscount.Equal(dec("100")))
}

func TestPackFlowUsesAssets(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypePack)
	ctx := workflowCtx()

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)

	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("100"))
	assert.ErrorIs(t, err, domain.ErrStageNotInFlow)

	result, err := svc.ProcessAssets(ctx, quote.ID, version.ID, domain.AssetsPayload{
		Assets: []domain.AssetInput{
			{SKU: "PK-1", Quantity: 2, UnitPrice: "50", Selected: true},
			{SKU: "PK-2", Quantity: 1, UnitPrice: "75", Selected: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAssets, result.CompletedStage)

	var count int64
	require.NoError(t, db.Model(&lineitemdomain.Asset{}).Where("version_id = ?", version.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestAssetsReviewOnlyWhenRequested(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	require.NoError(t, err)
	_, err = svc.ProcessAssetsReview(ctx, quote.ID, version.ID, domain.AssetsReviewPayload{Approved: true})
	assert.ErrorIs(t, err, domain.ErrStageNotInFlow)
}

func TestSupersededVersionIsReadOnly(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	require.NoError(t, db.Model(&versiondomain.QuoteVersion{}).
		Where("id = ?", version.ID).
		Update("is_active", false).Error)

	_, err := svc.ProcessSetup(workflowCtx(), quote.ID, version.ID, setupPayload())
	assert.ErrorIs(t, err, versiondomain.ErrVersionImmutable)

	// The rejected stage must leave the version untouched.
	var reloaded versiondomain.QuoteVersion
	require.NoError(t, db.Where("id = ?", version.ID).First(&reloaded).Error)
	assert.Empty(t, reloaded.CompletedStage)
	assert.Empty(t, reloaded.Payloads)
}

func TestOnlyAuthorAdvancesActiveVersion(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)

	ctx := actorcontext.WithActor(context.Background(), snowflake.ID(42), snowflake.ID(8))
	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	assert.ErrorIs(t, err, versiondomain.ErrVersionImmutable)
}

func TestStagesScopedToOrganization(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)

	ctx := actorcontext.WithActor(context.Background(), snowflake.ID(999), snowflake.ID(7))
	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setupPayload())
	assert.ErrorIs(t, err, quotedomain.ErrQuoteNotFound)

	_, err = svc.ProcessSetup(context.Background(), quote.ID, version.ID, setupPayload())
	assert.ErrorIs(t, err, quotedomain.ErrInvalidActor)
}

func TestAssetsReviewFlow(t *testing.T) {
	svc, db, node := newStageService(t)
	quote, version := seedWorkflow(t, db, node, quotedomain.ContractTypeContract)
	ctx := workflowCtx()

	setup := setupPayload()
	setup.RequiresAssetsReview = true
	_, err := svc.ProcessSetup(ctx, quote.ID, version.ID, setup)
	require.NoError(t, err)
	_, err = svc.ProcessImport(ctx, quote.ID, version.ID, importPayload("1000"))
	require.NoError(t, err)
	_, err = svc.ProcessMargin(ctx, quote.ID, version.ID, domain.MarginPayload{MarginPct: dec("10")})
	require.NoError(t, err)
	_, err = svc.ProcessDiscount(ctx, quote.ID, version.ID, domain.DiscountPayload{})
	require.NoError(t, err)
	_, err = svc.ProcessDetails(ctx, quote.ID, version.ID, domain.DetailsPayload{PaymentTerms: "net 30"})
	require.NoError(t, err)

	result, err := svc.ProcessAssetsReview(ctx, quote.ID, version.ID, domain.AssetsReviewPayload{Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StageAssetsReview, result.CompletedStage)
}
