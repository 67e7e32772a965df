package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tillbook/internal/accounts"
	"github.com/cleared-dev/tillbook/internal/ledger"
	"github.com/cleared-dev/tillbook/internal/model"
)

// Result describes what a posting did.
type Result struct {
	Key       string
	Lines     []model.TransactionLine
	Duplicate bool // already posted earlier; nothing written
	Skipped   bool // nothing to post, e.g. a zero-net adjustment
	Queued    bool // failed and stored in the outbox
}

// Poster turns events into ledger postings.
type Poster struct {
	ledger    *ledger.Ledger
	registry  *accounts.Registry
	chart     *accounts.Chart
	cogsRatio decimal.Decimal
	logger    *slog.Logger
}

// PosterOption configures a Poster.
type PosterOption func(*Poster)

// WithPosterLogger sets the logger.
func WithPosterLogger(logger *slog.Logger) PosterOption {
	return func(p *Poster) { p.logger = logger }
}

// WithCogsRatio sets the cost estimate ratio for sales without a cost.
func WithCogsRatio(r decimal.Decimal) PosterOption {
	return func(p *Poster) { p.cogsRatio = r }
}

// NewPoster creates a Poster. chart is the well-known account table resolved
// at startup; registry resolves payout and payment accounts by code.
func NewPoster(l *ledger.Ledger, registry *accounts.Registry, chart *accounts.Chart, opts ...PosterOption) *Poster {
	p := &Poster{
		ledger:    l,
		registry:  registry,
		chart:     chart,
		cogsRatio: DefaultCogsRatio,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Post routes ev to its adapter.
func (p *Poster) Post(ctx context.Context, ev Event) (Result, error) {
	switch e := ev.(type) {
	case SaleEvent:
		return p.PostSale(ctx, e)
	case *SaleEvent:
		return p.PostSale(ctx, *e)
	case ReturnEvent:
		return p.PostReturn(ctx, e)
	case *ReturnEvent:
		return p.PostReturn(ctx, *e)
	case StockAdjustmentEvent:
		return p.PostStockAdjustment(ctx, e)
	case *StockAdjustmentEvent:
		return p.PostStockAdjustment(ctx, *e)
	case PurchaseEvent:
		return p.PostPurchase(ctx, e)
	case *PurchaseEvent:
		return p.PostPurchase(ctx, *e)
	case PaymentEvent:
		return p.PostPayment(ctx, e)
	case *PaymentEvent:
		return p.PostPayment(ctx, *e)
	}
	return Result{}, fmt.Errorf("unsupported event type %T", ev)
}

// PostSale posts a completed sale.
func (p *Poster) PostSale(ctx context.Context, e SaleEvent) (Result, error) {
	g, err := BuildSale(p.chart, p.cogsRatio, e)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	return p.post(ctx, g)
}

// PostReturn posts an approved return.
func (p *Poster) PostReturn(ctx context.Context, e ReturnEvent) (Result, error) {
	g, err := BuildReturn(p.chart, p.cogsRatio, e)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	return p.post(ctx, g)
}

// PostStockAdjustment posts a stock count correction. A zero net posts
// nothing.
func (p *Poster) PostStockAdjustment(ctx context.Context, e StockAdjustmentEvent) (Result, error) {
	g, err := BuildStockAdjustment(p.chart, e)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	return p.post(ctx, g)
}

// PostPurchase posts received stock. The payout account defaults to cash.
func (p *Poster) PostPurchase(ctx context.Context, e PurchaseEvent) (Result, error) {
	payout, err := p.moneyAccount(ctx, "purchase", e.PurchaseID, e.PayoutAccountCode)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	g, err := BuildPurchase(p.chart, payout, e)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	return p.post(ctx, g)
}

// PostPayment posts a supplier or customer payment.
func (p *Poster) PostPayment(ctx context.Context, e PaymentEvent) (Result, error) {
	money, err := p.moneyAccount(ctx, "payment", e.PaymentID, e.AccountCode)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	g, err := BuildPayment(p.chart, money, e)
	if err != nil {
		return Result{Key: Key(e)}, err
	}
	return p.post(ctx, g)
}

// moneyAccount resolves code, or the cash role when code is empty.
func (p *Poster) moneyAccount(ctx context.Context, event, sourceID, code string) (model.Account, error) {
	if code == "" {
		if p.chart == nil {
			return model.Account{}, nil
		}
		a, _ := p.chart.Account(accounts.RoleCash)
		return a, nil
	}
	a, err := p.registry.RequirePostable(ctx, event, sourceID, code)
	if err != nil {
		return model.Account{}, err
	}
	return *a, nil
}

func (p *Poster) post(ctx context.Context, g ledger.Group) (Result, error) {
	res := Result{Key: g.Key}
	if len(g.Lines) == 0 {
		p.logger.Debug("nothing to post", "posting_key", g.Key)
		res.Skipped = true
		return res, nil
	}

	lines, err := p.ledger.PostGroup(ctx, g)
	if errors.Is(err, ledger.ErrDuplicatePosting) {
		p.logger.Info("event already posted", "posting_key", g.Key)
		res.Duplicate = true
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Lines = lines
	return res, nil
}
