package lending

import (
	"errors"
	"log/slog"
	"math"
	"math/big"
	"math/bits"
	"strings"
	"time"

	"crosslend/core/events"
	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/common"
	"crosslend/native/custody"
	"crosslend/native/oracle"
	"crosslend/native/tier"
)

const (
	moduleName  = "lending"
	maxIDLength = 64
)

var (
	errNilStore    = errors.New("lending engine: store not configured")
	errNilFeeds    = errors.New("lending engine: price feeds not configured")
	errNilVerifier = errors.New("lending engine: attestation verifier not configured")
)

// AssetCustody moves assets between accounts. Implementations act on the
// transaction the engine hands them, so transfers commit or roll back with
// the surrounding transition.
type AssetCustody interface {
	Deposit(from, custodyAccount, mint crypto.Address, amount *big.Int, decimals uint8) error
	Withdraw(custodyAccount, to, mint crypto.Address, amount *big.Int, decimals uint8) error
	Balance(owner, mint crypto.Address) (*big.Int, error)
}

// State is the transaction-scoped view of every record a transition may
// touch.
type State interface {
	custody.Store
	attest.Ledger
	GetTier(id string) (*tier.Config, bool, error)
	GetLendOffer(lender crypto.Address, id string) (*LendOffer, bool, error)
	PutLendOffer(offer *LendOffer) error
	DeleteLendOffer(lender crypto.Address, id string) error
	GetLoanOffer(borrower crypto.Address, id string) (*LoanOffer, bool, error)
	PutLoanOffer(loan *LoanOffer) error
}

// Store runs fn as one serialisable transaction. Returning an error from fn
// discards every write it staged.
type Store interface {
	Update(fn func(State) error) error
	View(fn func(State) error) error
}

// Observer receives the outcome of every transition.
type Observer interface {
	ObserveTransition(operation string, err error, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(string, error, time.Duration) {}

// Engine executes the lend and loan offer state machines.
type Engine struct {
	store     Store
	params    Params
	authority *Authority
	verifier  *attest.Verifier
	feeds     oracle.Feed
	custodyFn func(State) AssetCustody
	emitter   events.Emitter
	observer  Observer
	logger    *slog.Logger
	pauses    common.PauseView
	nowFn     func() time.Time
}

// NewEngine constructs an engine over store. Params must already be
// validated.
func NewEngine(store Store, params Params, authority *Authority) *Engine {
	return &Engine{
		store:     store,
		params:    params,
		authority: authority,
		custodyFn: func(st State) AssetCustody { return custody.NewLedger(st) },
		emitter:   events.NoopEmitter{},
		observer:  noopObserver{},
		logger:    slog.Default(),
		nowFn:     time.Now,
	}
}

func (e *Engine) Params() Params { return e.params }

func (e *Engine) SetVerifier(v *attest.Verifier) { e.verifier = v }

func (e *Engine) SetFeeds(f oracle.Feed) { e.feeds = f }

// SetCustody overrides how the engine obtains an AssetCustody for a
// transaction.
func (e *Engine) SetCustody(fn func(State) AssetCustody) {
	if fn == nil {
		fn = func(st State) AssetCustody { return custody.NewLedger(st) }
	}
	e.custodyFn = fn
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	e.observer = o
}

func (e *Engine) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	e.logger = l
}

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the clock. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// execute runs fn in one transaction and emits the buffered events only
// after the commit succeeded.
func (e *Engine) execute(operation string, fn func(st State, cust AssetCustody, buf *events.Buffer) error) error {
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if e.store == nil {
		return errNilStore
	}
	started := time.Now()
	var buf events.Buffer
	err := e.store.Update(func(st State) error {
		return fn(st, e.custodyFn(st), &buf)
	})
	e.observer.ObserveTransition(operation, err, time.Since(started))
	if err != nil {
		buf.Discard()
		e.logger.Info("lending transition rejected",
			slog.String("operation", operation),
			slog.String("code", common.CodeOf(err)),
			slog.String("error", err.Error()))
		return err
	}
	buf.Flush(e.emitter)
	return nil
}

// LendOffer returns a copy of the stored lend offer.
func (e *Engine) LendOffer(lender crypto.Address, id string) (*LendOffer, error) {
	var out *LendOffer
	err := e.store.View(func(st State) error {
		offer, ok, err := st.GetLendOffer(lender, normalizeID(id))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidOfferId, "lend offer %q not found", id)
		}
		out = offer
		return nil
	})
	return out, err
}

// LoanOffer returns a copy of the stored loan offer.
func (e *Engine) LoanOffer(borrower crypto.Address, id string) (*LoanOffer, error) {
	var out *LoanOffer
	err := e.store.View(func(st State) error {
		loan, ok, err := st.GetLoanOffer(borrower, normalizeID(id))
		if err != nil {
			return err
		}
		if !ok {
			return common.Wrap(common.ErrInvalidOfferId, "loan offer %q not found", id)
		}
		out = loan
		return nil
	})
	return out, err
}

func normalizeID(id string) string { return strings.TrimSpace(id) }

func validateID(id string) error {
	if id == "" || len(id) > maxIDLength {
		return common.Wrap(common.ErrInvalidOfferId, "id must be 1-%d characters", maxIDLength)
	}
	return nil
}

// quote fetches a price for feedID and applies the staleness and confidence
// bounds.
func (e *Engine) quote(feedID string) (*big.Rat, error) {
	if e.feeds == nil {
		return nil, errNilFeeds
	}
	q, err := e.feeds.Price(feedID)
	if err != nil {
		return nil, common.Wrap(common.ErrInvalidPriceFeedAccount, "feed %s: %v", feedID, err)
	}
	if q.Rate == nil || q.Rate.Sign() <= 0 {
		return nil, common.Wrap(common.ErrInvalidPriceFeedAccount, "feed %s returned no price", feedID)
	}
	if e.params.MaxPriceAge > 0 {
		age := e.nowFn().Sub(q.Timestamp)
		if age > e.params.MaxPriceAge {
			return nil, common.Wrap(common.ErrInvalidPriceFeedAccount, "feed %s is %s old", feedID, age)
		}
	}
	if e.params.MaxConfidenceBps > 0 && q.Confidence != nil {
		bound := new(big.Rat).Mul(q.Rate, new(big.Rat).SetFrac(new(big.Int).SetUint64(e.params.MaxConfidenceBps), basisPoints))
		if q.Confidence.Cmp(bound) > 0 {
			return nil, common.Wrap(common.ErrInvalidPriceFeedAccount, "feed %s confidence too wide", feedID)
		}
	}
	return q.Rate, nil
}

// priceSnapshot holds quotes fetched before a transaction opens, so the
// state lock is never held across a feed round trip.
type priceSnapshot struct {
	collateralFeed string
	lendFeed       string
	collateral     *big.Rat
	lend           *big.Rat
	collateralErr  error
	lendErr        error
}

func (e *Engine) snapshotPrices(collateralFeed, lendFeed string) priceSnapshot {
	snap := priceSnapshot{collateralFeed: normalizeID(collateralFeed), lendFeed: normalizeID(lendFeed)}
	snap.collateral, snap.collateralErr = e.quoteFeed(snap.collateralFeed)
	snap.lend, snap.lendErr = e.quoteFeed(snap.lendFeed)
	return snap
}

func (e *Engine) quoteFeed(feedID string) (*big.Rat, error) {
	if feedID == "" {
		return nil, common.Wrap(common.ErrInvalidPriceFeedAccount, "no feed")
	}
	return e.quote(feedID)
}

// registeredFeeds returns the feed ids of the loan's collateral and lend
// assets.
func registeredFeeds(st State, loan *LoanOffer) (string, string, error) {
	collAsset, ok, err := st.GetAsset(loan.CollateralMint)
	if err != nil {
		return "", "", err
	}
	if !ok || collAsset.PriceFeedID == "" {
		return "", "", common.Wrap(common.ErrInvalidPriceFeedForCollateral, "collateral %s has no feed", loan.CollateralMint)
	}
	lendAsset, ok, err := st.GetAsset(loan.LendMint)
	if err != nil {
		return "", "", err
	}
	if !ok || lendAsset.PriceFeedID == "" {
		return "", "", common.Wrap(common.ErrInvalidPriceFeedForLend, "lend asset %s has no feed", loan.LendMint)
	}
	return collAsset.PriceFeedID, lendAsset.PriceFeedID, nil
}

// loanFeeds resolves the registered feeds of a loan outside any update.
// Lookup failures yield empty ids; the transition reports the real error.
func (e *Engine) loanFeeds(borrower crypto.Address, loanID string) (string, string) {
	if e.store == nil {
		return "", ""
	}
	var coll, lend string
	_ = e.store.View(func(st State) error {
		loan, ok, err := st.GetLoanOffer(borrower, normalizeID(loanID))
		if err != nil || !ok {
			return err
		}
		coll, lend, _ = registeredFeeds(st, loan)
		return nil
	})
	return coll, lend
}

// healthRatio values the loan's collateral against debt with the prices in
// snap, which must come from the feeds registered for both assets.
func healthRatio(st State, loan *LoanOffer, debt *big.Int, snap priceSnapshot) (*big.Rat, error) {
	collFeed, lendFeed, err := registeredFeeds(st, loan)
	if err != nil {
		return nil, err
	}
	if collFeed != snap.collateralFeed {
		return nil, common.Wrap(common.ErrInvalidPriceFeedForCollateral, "feed %q", snap.collateralFeed)
	}
	if lendFeed != snap.lendFeed {
		return nil, common.Wrap(common.ErrInvalidPriceFeedForLend, "feed %q", snap.lendFeed)
	}
	return snap.ratio(loan, debt)
}

func (snap priceSnapshot) ratio(loan *LoanOffer, debt *big.Int) (*big.Rat, error) {
	if snap.collateralErr != nil {
		return nil, snap.collateralErr
	}
	if snap.lendErr != nil {
		return nil, snap.lendErr
	}
	collateralValue := AssetValue(loan.CollateralAmount, loan.CollateralDecimals, snap.collateral)
	loanValue := AssetValue(debt, loan.LendDecimals, snap.lend)
	return HealthRatio(collateralValue, loanValue)
}

// addSecs adds unix-second quantities, saturating at the uint64 limit.
func addSecs(parts ...uint64) (uint64, bool) {
	var sum uint64
	for _, p := range parts {
		var carry uint64
		sum, carry = bits.Add64(sum, p, 0)
		if carry != 0 {
			return math.MaxUint64, false
		}
	}
	return sum, true
}

func elapsedSince(start, now uint64) uint64 {
	if now <= start {
		return 0
	}
	return now - start
}
