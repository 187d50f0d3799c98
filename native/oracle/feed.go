package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
)

// Quote is a price observation for a feed. Confidence is the half-width of
// the reported interval in the same unit as Rate; nil means unknown.
type Quote struct {
	Rate       *big.Rat
	Confidence *big.Rat
	Timestamp  time.Time
	Source     string
}

// Clone returns a deep copy of the quote.
func (q Quote) Clone() Quote {
	clone := Quote{Timestamp: q.Timestamp, Source: q.Source}
	if q.Rate != nil {
		clone.Rate = new(big.Rat).Set(q.Rate)
	}
	if q.Confidence != nil {
		clone.Confidence = new(big.Rat).Set(q.Confidence)
	}
	return clone
}

// Feed resolves a price feed identifier to its latest quote.
type Feed interface {
	Price(feedID string) (Quote, error)
}

var (
	ErrFeedNotFound = errors.New("oracle: feed not found")
	ErrNoFreshQuote = errors.New("oracle: no fresh quote available")
)

func normaliseFeedID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ManualFeed holds operator-pushed quotes. It backs tests and manual
// overrides during incident response.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]Quote)}
}

// SetDecimal records a decimal rate and optional confidence for feedID.
func (m *ManualFeed) SetDecimal(feedID, rate, confidence string, ts time.Time) error {
	if m == nil {
		return fmt.Errorf("manual feed not configured")
	}
	rat, ok := new(big.Rat).SetString(strings.TrimSpace(rate))
	if !ok {
		return fmt.Errorf("manual feed: invalid rate %q", rate)
	}
	if rat.Sign() <= 0 {
		return fmt.Errorf("manual feed: rate must be positive")
	}
	var conf *big.Rat
	if trimmed := strings.TrimSpace(confidence); trimmed != "" {
		conf, ok = new(big.Rat).SetString(trimmed)
		if !ok || conf.Sign() < 0 {
			return fmt.Errorf("manual feed: invalid confidence %q", confidence)
		}
	}
	m.Set(feedID, Quote{Rate: rat, Confidence: conf, Timestamp: ts})
	return nil
}

func (m *ManualFeed) Set(feedID string, q Quote) {
	if m == nil || q.Rate == nil {
		return
	}
	key := normaliseFeedID(feedID)
	if key == "" {
		return
	}
	clone := q.Clone()
	if clone.Source == "" {
		clone.Source = "manual"
	}
	m.mu.Lock()
	m.quotes[key] = clone
	m.mu.Unlock()
}

func (m *ManualFeed) Price(feedID string) (Quote, error) {
	if m == nil {
		return Quote{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	stored, ok := m.quotes[normaliseFeedID(feedID)]
	m.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	return stored.Clone(), nil
}

// Aggregator consults registered feeds in priority order until one returns a
// fresh positive quote.
type Aggregator struct {
	mu       sync.RWMutex
	priority []string
	feeds    map[string]Feed
	maxAge   time.Duration
	nowFn    func() time.Time
}

func NewAggregator(maxAge time.Duration) *Aggregator {
	return &Aggregator{
		feeds:  make(map[string]Feed),
		maxAge: maxAge,
		nowFn:  time.Now,
	}
}

// SetNowFunc overrides the clock used for freshness filtering.
func (a *Aggregator) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	a.mu.Lock()
	a.nowFn = now
	a.mu.Unlock()
}

// Register adds or replaces a feed under name and appends it to the priority
// list when new.
func (a *Aggregator) Register(name string, feed Feed) {
	trimmed := normaliseFeedID(name)
	if a == nil || trimmed == "" || feed == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.feeds[trimmed]; !exists {
		a.priority = append(a.priority, trimmed)
	}
	a.feeds[trimmed] = feed
}

func (a *Aggregator) Price(feedID string) (Quote, error) {
	if a == nil {
		return Quote{}, fmt.Errorf("oracle aggregator not configured")
	}
	a.mu.RLock()
	priority := append([]string{}, a.priority...)
	maxAge := a.maxAge
	now := a.nowFn()
	a.mu.RUnlock()

	var lastErr error
	for _, name := range priority {
		a.mu.RLock()
		feed := a.feeds[name]
		a.mu.RUnlock()
		quote, err := feed.Price(feedID)
		if err != nil {
			lastErr = err
			continue
		}
		if quote.Rate == nil || quote.Rate.Sign() <= 0 {
			lastErr = fmt.Errorf("oracle %s returned invalid rate", name)
			continue
		}
		if maxAge > 0 && quote.Timestamp.Before(now.Add(-maxAge)) {
			lastErr = ErrNoFreshQuote
			continue
		}
		result := quote.Clone()
		if result.Source == "" {
			result.Source = name
		}
		return result, nil
	}
	if lastErr == nil {
		lastErr = ErrNoFreshQuote
	}
	return Quote{}, lastErr
}
