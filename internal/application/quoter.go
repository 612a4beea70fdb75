package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ahrav/go-pricescout/internal/domain"
	"github.com/ahrav/go-pricescout/internal/ports"
)

// Aggregator is the engine contract the Quoter depends on.
type Aggregator interface {
	Aggregate(ctx context.Context, query domain.Query) (domain.AggregationResult, error)
}

// Quote sources.
const (
	SourceCatalog   = "catalog"
	SourceProviders = "providers"
)

// Quote is the answer to one caller request.
type Quote struct {
	Reply  string                   `json:"reply"`
	Source string                   `json:"source"`
	Result domain.AggregationResult `json:"result"`
}

// historyTimeout bounds the best-effort history write.
const historyTimeout = 5 * time.Second

// Quoter is the caller-facing flow: internal catalog first, then the
// aggregation engine, then reply rendering and history.
type Quoter struct {
	engine           Aggregator
	catalog          ports.CatalogLookup
	catalogThreshold float64
	history          ports.HistoryStore
	markups          Markups
	logger           log.FieldLogger
	runBudget        time.Duration
	inflight         singleflight.Group
}

// QuoterOption configures a Quoter.
type QuoterOption func(*Quoter)

// WithCatalog enables the catalog fast path.
func WithCatalog(c ports.CatalogLookup, threshold float64) QuoterOption {
	return func(q *Quoter) {
		q.catalog = c
		q.catalogThreshold = threshold
	}
}

// WithHistory enables conversation history.
func WithHistory(h ports.HistoryStore) QuoterOption { return func(q *Quoter) { q.history = h } }

// WithMarkups sets the per-provider markups used for displayed prices.
func WithMarkups(m Markups) QuoterOption { return func(q *Quoter) { q.markups = m } }

// WithQuoterLogger overrides the logger.
func WithQuoterLogger(l log.FieldLogger) QuoterOption { return func(q *Quoter) { q.logger = l } }

// WithRunBudget bounds a shared run once it is detached from the callers
// waiting on it. Zero leaves the run bounded only by provider timeouts.
func WithRunBudget(d time.Duration) QuoterOption { return func(q *Quoter) { q.runBudget = d } }

// NewQuoter creates a Quoter around engine.
func NewQuoter(engine Aggregator, opts ...QuoterOption) *Quoter {
	q := &Quoter{
		engine:  engine,
		markups: Markups{},
		logger:  log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Quote answers one request. A temporarily unavailable engine still yields
// a Quote carrying the unavailable reply, together with the error so the
// caller can map it. Concurrent identical requests share one execution.
func (q *Quoter) Quote(ctx context.Context, callerID, itemName string) (Quote, error) {
	query, err := domain.NewQuery(itemName, callerID)
	if err != nil {
		return Quote{}, err
	}

	key := query.CallerKey + "\x00" + strings.ToLower(query.ItemName)
	ch := q.inflight.DoChan(key, func() (any, error) {
		// The run is shared, so no single waiter may cancel it.
		runCtx, cancel := q.detach(ctx)
		defer cancel()
		return q.quote(runCtx, query)
	})

	select {
	case res := <-ch:
		return res.Val.(Quote), res.Err
	case <-ctx.Done():
		return Quote{}, ctx.Err()
	}
}

func (q *Quoter) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if q.runBudget > 0 {
		return context.WithTimeout(ctx, q.runBudget)
	}
	return context.WithCancel(ctx)
}

func (q *Quoter) quote(ctx context.Context, query domain.Query) (Quote, error) {
	logger := q.logger.WithFields(log.Fields{"caller": query.CallerKey, "item": query.ItemName})

	if hit := q.lookupCatalog(ctx, logger, query); hit != nil {
		result := domain.NewAggregationResult(hit, hit)
		result.RunID = uuid.NewString()
		quote := Quote{
			Reply:  RenderReply(query.ItemName, result, q.markups),
			Source: SourceCatalog,
			Result: result,
		}
		q.save(ctx, logger, query, quote.Reply)
		return quote, nil
	}

	result, err := q.engine.Aggregate(ctx, query)
	quote := Quote{Source: SourceProviders, Result: result}
	switch {
	case err == nil:
		quote.Reply = RenderReply(query.ItemName, result, q.markups)
	case domain.IsUnavailable(err):
		quote.Reply = ReplyUnavailable
	default:
		return quote, err
	}

	q.save(ctx, logger, query, quote.Reply)
	return quote, err
}

func (q *Quoter) lookupCatalog(ctx context.Context, logger log.FieldLogger, query domain.Query) *domain.NormalizedOffer {
	if q.catalog == nil {
		return nil
	}
	hit, err := q.catalog.Lookup(ctx, query.ItemName, q.catalogThreshold)
	if err != nil {
		logger.WithField("event", "catalog_failed").WithError(err).Warn("Catalog lookup failed; falling back to providers")
		return nil
	}
	if hit == nil {
		return nil
	}
	hit.Provider = domain.ProviderInternal
	logger.WithFields(log.Fields{
		"event":      "catalog_hit",
		"code":       hit.Code,
		"similarity": hit.Similarity,
	}).Info("Catalog hit")
	return hit
}

// save writes the exchange to history. Failures are logged and dropped.
func (q *Quoter) save(ctx context.Context, logger log.FieldLogger, query domain.Query, reply string) {
	if q.history == nil {
		return
	}
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if err := q.history.Save(hctx, query.CallerKey, query.ItemName, reply); err != nil {
		logger.WithField("event", "history_save_failed").WithError(err).Warn("History save failed")
	}
}

// History returns the most recent turns of callerID.
func (q *Quoter) History(ctx context.Context, callerID string, limit int) ([]ports.Turn, error) {
	if q.history == nil {
		return nil, errors.New("history is disabled")
	}
	return q.history.Recent(ctx, callerID, limit)
}
