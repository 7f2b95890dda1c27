package domain

import (
	"testing"

	quotedomain "github.com/smallbiznis/quotedesk/internal/quote/domain"
	"github.com/stretchr/testify/assert"
)

func TestContractOrder(t *testing.T) {
	order := Order(quotedomain.ContractTypeContract, false)
	assert.Equal(t, []Stage{StageSetup, StageImport, StageMargin, StageDiscount, StageDetails, StageSubmission}, order)
	assert.Equal(t, -1, Index(order, StageAssets))
	assert.Equal(t, -1, Index(order, StageAssetsReview))
}

func TestContractOrderWithAssetsReview(t *testing.T) {
	order := Order(quotedomain.ContractTypeContract, true)
	assert.Equal(t, []Stage{StageSetup, StageImport, StageMargin, StageDiscount, StageDetails, StageAssetsReview, StageSubmission}, order)
	assert.Equal(t, 5, Index(order, StageAssetsReview))
}

func TestPackOrder(t *testing.T) {
	order := Order(quotedomain.ContractTypePack, true)
	assert.Equal(t, []Stage{StageSetup, StageAssets, StageMargin, StageDiscount, StageDetails, StageSubmission}, order)
	assert.Equal(t, -1, Index(order, StageImport))
	assert.Equal(t, -1, Index(order, Stage("")))
}
