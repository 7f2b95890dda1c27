package pricing

import (
	"context"

	exchangedomain "github.com/smallbiznis/quotedesk/internal/exchange/domain"
	"github.com/smallbiznis/quotedesk/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Previewer runs the pipeline for hypothetical discount sets without
// persisting anything, optionally annotating the result in another currency.
type Previewer struct {
	log   *zap.Logger
	rates exchangedomain.RateProvider
}

type PreviewerParams struct {
	fx.In

	Log   *zap.Logger
	Rates exchangedomain.RateProvider
}

func NewPreviewer(p PreviewerParams) *Previewer {
	return &Previewer{
		log:   p.Log.Named("pricing.preview"),
		rates: p.Rates,
	}
}

// Preview computes a summary view. baseCurrency/targetCurrency are optional;
// when both are set the final total is also reported in the target currency.
func (p *Previewer) Preview(ctx context.Context, in Input, baseCurrency, targetCurrency string) (SummaryView, error) {
	summary, err := ComputePriceSummary(in)
	if err != nil {
		return SummaryView{}, err
	}
	if summary.Clamped {
		p.log.Warn("discount pipeline clamped negative running price to zero")
	}

	view := summary.View()
	if baseCurrency != "" && targetCurrency != "" && baseCurrency != targetCurrency {
		rate, err := p.rates.TargetRate(ctx, baseCurrency, targetCurrency)
		if err != nil {
			// Conversion is an annotation; a missing rate never fails a preview.
			p.log.Warn("exchange rate lookup failed",
				zap.String("from", baseCurrency),
				zap.String("to", targetCurrency),
				zap.Error(err),
			)
			return view, nil
		}
		view.ConvertedCurrency = targetCurrency
		view.ConvertedTotal = money.Display(money.Convert(summary.FinalTotalPrice, rate))
	}
	return view, nil
}

var Module = fx.Module("pricing",
	fx.Provide(NewPreviewer),
)
