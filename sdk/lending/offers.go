package lending

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) CreateLendOffer(ctx context.Context, tierID, offerID string, interestBps uint64, mint string) (*LendOffer, error) {
	body := map[string]any{"tier_id": tierID, "offer_id": offerID, "interest_bps": interestBps, "mint": mint}
	var out LendOffer
	if err := c.do(ctx, http.MethodPost, "/v1/lend-offers", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LendOffer fetches an offer. An empty lender means the caller.
func (c *Client) LendOffer(ctx context.Context, lender, offerID string) (*LendOffer, error) {
	var out LendOffer
	if err := c.do(ctx, http.MethodGet, "/v1/lend-offers/"+escape(offerID), partyQuery("lender", lender), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLendOfferInterest(ctx context.Context, offerID string, interestBps uint64) (*LendOffer, error) {
	var out LendOffer
	body := map[string]any{"interest_bps": interestBps}
	if err := c.do(ctx, http.MethodPatch, "/v1/lend-offers/"+escape(offerID)+"/interest", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestCancel(ctx context.Context, offerID string) (*LendOffer, error) {
	var out LendOffer
	if err := c.do(ctx, http.MethodPost, "/v1/lend-offers/"+escape(offerID)+"/cancel-request", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecuteCancel refunds a canceling offer. Operator only.
func (c *Client) ExecuteCancel(ctx context.Context, lender, offerID, waitingInterest string) (string, error) {
	body := map[string]string{"lender": lender, "waiting_interest": waitingInterest}
	var out amountBody
	if err := c.do(ctx, http.MethodPost, "/v1/operator/lend-offers/"+escape(offerID)+"/cancel", nil, body, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

// PushPrice records a manual quote. Operator only.
func (c *Client) PushPrice(ctx context.Context, feed, rate, confidence string) error {
	body := map[string]string{"feed": feed, "rate": rate}
	if confidence != "" {
		body["confidence"] = confidence
	}
	return c.do(ctx, http.MethodPost, "/v1/operator/prices", nil, body, nil)
}

func (c *Client) Balance(ctx context.Context, owner, mint string) (string, error) {
	var out amountBody
	if err := c.do(ctx, http.MethodGet, "/v1/balances/"+escape(mint), partyQuery("owner", owner), nil, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

func (c *Client) Events(ctx context.Context, f EventFilter) ([]Event, error) {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.LoanID != "" {
		q.Set("loan_id", f.LoanID)
	}
	if f.OfferID != "" {
		q.Set("offer_id", f.OfferID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	var out struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/events", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}
