package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/quotedesk/internal/actorcontext"
	"github.com/smallbiznis/quotedesk/internal/clock"
	lineitemdomain "github.com/smallbiznis/quotedesk/internal/lineitem/domain"
	lineitemrepository "github.com/smallbiznis/quotedesk/internal/lineitem/repository"
	"github.com/smallbiznis/quotedesk/internal/migration"
	"github.com/smallbiznis/quotedesk/internal/notification"
	"github.com/smallbiznis/quotedesk/internal/quote/domain"
	versiondomain "github.com/smallbiznis/quotedesk/internal/quoteversion/domain"
	versionrepository "github.com/smallbiznis/quotedesk/internal/quoteversion/repository"
	"github.com/smallbiznis/quotedesk/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	testTime = time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	testOrg  = snowflake.ID(42)
	testUser = snowflake.ID(7)
)

func newQuoteService(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	versionRepo := versionrepository.Provide()
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewFakeClock(testTime),
		Allocator:   sequence.NewAllocator(zap.NewNop(), nil),
		VersionRepo: versionRepo,
		Gate: NewValidationGate(GateParams{
			DB:           db,
			Log:          zap.NewNop(),
			VersionRepo:  versionRepo,
			LineItemRepo: lineitemrepository.Provide(),
		}),
		Notifier: notification.NewDispatcher(zap.NewNop()),
	})
	return svc, db, node
}

func actorCtx() context.Context {
	return actorcontext.WithActor(context.Background(), testOrg, testUser)
}

func createRequest() domain.CreateQuoteRequest {
	return domain.CreateQuoteRequest{
		ContractType:    domain.ContractTypeContract,
		CustomerName:    "Globex",
		CustomerCountry: "us",
		Currency:        "usd",
	}
}

// makeSubmittable gives the quote's active version everything the submission
// gate checks for: a distribution with a priced row and a margin.
func makeSubmittable(t *testing.T, db *gorm.DB, node *snowflake.Node, quote domain.Quote) {
	t.Helper()

	distribution := &lineitemdomain.Distribution{
		ID:         node.Generate(),
		VersionID:  quote.ActiveVersionID,
		VendorName: "acme",
		Currency:   "USD",
	}
	require.NoError(t, db.Create(distribution).Error)

	row := &lineitemdomain.Row{
		ID:             node.Generate(),
		VersionID:      quote.ActiveVersionID,
		DistributionID: distribution.ID,
		SKU:            "SRV-1",
		Quantity:       1,
		UnitPrice:      decimal.RequireFromString("1000"),
		IsSelected:     true,
	}
	require.NoError(t, db.Create(row).Error)

	require.NoError(t, db.Model(&versiondomain.QuoteVersion{}).
		Where("id = ?", quote.ActiveVersionID).
		Update("margin_pct", decimal.RequireFromString("12")).Error)
}

func TestCreateAllocatesSequentialNumbers(t *testing.T) {
	svc, db, _ := newQuoteService(t)
	ctx := actorCtx()

	first, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(100001), first.QuoteNumber)
	assert.Equal(t, "US", first.CustomerCountry)
	assert.True(t, first.Alive)
	assert.Nil(t, first.SubmittedAt)

	second, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(100002), second.QuoteNumber)

	var version versiondomain.QuoteVersion
	require.NoError(t, db.Where("quote_id = ?", first.ID).First(&version).Error)
	assert.Equal(t, 1, version.Revision)
	assert.Equal(t, "EQ-100001/1", version.Name)
	assert.Equal(t, "USD", version.Currency)
	assert.True(t, version.IsActive)
	assert.Equal(t, version.ID, first.ActiveVersionID)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newQuoteService(t)
	ctx := actorCtx()

	req := createRequest()
	req.ContractType = "lease"
	_, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidContractType)

	req = createRequest()
	req.CustomerName = "   "
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = svc.Create(context.Background(), createRequest())
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestSubmitBlockedByGate(t *testing.T) {
	svc, _, _ := newQuoteService(t)
	ctx := actorCtx()

	quote, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, quote.ID)
	var submission *domain.SubmissionError
	require.ErrorAs(t, err, &submission)
	assert.NotEmpty(t, submission.Messages)

	// The failed submission left the quote drafted.
	state, err := svc.GetState(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, "drafted", state.Status)
}

func TestSubmitIdempotent(t *testing.T) {
	svc, db, node := newQuoteService(t)
	ctx := actorCtx()

	quote, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	makeSubmittable(t, db, node, quote)

	submitted, err := svc.Submit(ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, submitted.SubmittedAt)
	firstAt := *submitted.SubmittedAt

	again, err := svc.Submit(ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, again.SubmittedAt)
	assert.True(t, firstAt.Equal(*again.SubmittedAt))

	state, err := svc.GetState(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, "submitted", state.Status)
}

func TestUnravelReturnsQuoteToDraft(t *testing.T) {
	svc, db, node := newQuoteService(t)
	ctx := actorCtx()

	quote, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	makeSubmittable(t, db, node, quote)

	_, err = svc.Submit(ctx, quote.ID)
	require.NoError(t, err)

	unraveled, err := svc.Unravel(ctx, quote.ID)
	require.NoError(t, err)
	assert.Nil(t, unraveled.SubmittedAt)

	// Unraveling a drafted quote is a no-op.
	_, err = svc.Unravel(ctx, quote.ID)
	require.NoError(t, err)

	state, err := svc.GetState(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, "drafted", state.Status)
}

func TestDeadQuoteRejectsTransitions(t *testing.T) {
	svc, db, node := newQuoteService(t)
	ctx := actorCtx()

	quote, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	makeSubmittable(t, db, node, quote)

	_, err = svc.SetAliveness(ctx, quote.ID, false)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteDead)
	_, err = svc.Unravel(ctx, quote.ID)
	assert.ErrorIs(t, err, domain.ErrQuoteDead)
}

func TestReplicateCopiesActiveVersion(t *testing.T) {
	svc, db, node := newQuoteService(t)
	ctx := actorCtx()

	source, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	makeSubmittable(t, db, node, source)
	_, err = svc.Submit(ctx, source.ID)
	require.NoError(t, err)

	replica, err := svc.Replicate(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100002), replica.QuoteNumber)
	assert.Equal(t, source.ContractType, replica.ContractType)
	assert.Equal(t, source.CustomerName, replica.CustomerName)
	assert.Nil(t, replica.SubmittedAt)
	assert.NotEqual(t, source.ActiveVersionID, replica.ActiveVersionID)

	var count int64
	require.NoError(t, db.Model(&lineitemdomain.Row{}).Where("version_id = ?", replica.ActiveVersionID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&lineitemdomain.Row{}).Where("version_id = ?", source.ActiveVersionID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var version versiondomain.QuoteVersion
	require.NoError(t, db.Where("id = ?", replica.ActiveVersionID).First(&version).Error)
	assert.Equal(t, 1, version.Revision)
	assert.Equal(t, "EQ-100002/1", version.Name)
}

func TestDeleteRemovesQuoteAndVersions(t *testing.T) {
	svc, db, node := newQuoteService(t)
	ctx := actorCtx()

	quote, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	makeSubmittable(t, db, node, quote)

	require.NoError(t, svc.Delete(ctx, quote.ID))

	_, err = svc.Get(ctx, quote.ID)
	assert.True(t, errors.Is(err, domain.ErrQuoteNotFound))

	var count int64
	require.NoError(t, db.Model(&versiondomain.QuoteVersion{}).Where("quote_id = ?", quote.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&lineitemdomain.Row{}).Where("version_id = ?", quote.ActiveVersionID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
