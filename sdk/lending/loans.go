package lending

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

func (c *Client) MatchLendOffer(ctx context.Context, p MatchParams) (*LoanOffer, error) {
	var out LoanOffer
	if err := c.do(ctx, http.MethodPost, "/v1/loans", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoanOffer fetches a loan. An empty borrower means the caller.
func (c *Client) LoanOffer(ctx context.Context, borrower, loanID string) (*LoanOffer, error) {
	var out LoanOffer
	if err := c.do(ctx, http.MethodGet, "/v1/loans/"+escape(loanID), partyQuery("borrower", borrower), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DepositCollateral(ctx context.Context, loanID, amount string, decimals uint8) (*LoanOffer, error) {
	normalized, err := ensurePositiveAmount("collateral", amount)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"amount": normalized, "decimals": decimals}
	var out LoanOffer
	if err := c.do(ctx, http.MethodPost, "/v1/loans/"+escape(loanID)+"/collateral", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DepositForeignCollateral(ctx context.Context, loanID string, d ForeignDeposit) (*LoanOffer, error) {
	normalized, err := ensurePositiveAmount("collateral", d.Amount)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Borrower) == "" {
		return nil, fmt.Errorf("borrower required")
	}
	d.Amount = normalized
	var out LoanOffer
	if err := c.do(ctx, http.MethodPost, "/v1/operator/loans/"+escape(loanID)+"/foreign-collateral", nil, d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Activate(ctx context.Context, loanID, collateralFeed, lendFeed string) (*LoanOffer, error) {
	body := map[string]string{"collateral_feed": collateralFeed, "lend_feed": lendFeed}
	var out LoanOffer
	if err := c.do(ctx, http.MethodPost, "/v1/loans/"+escape(loanID)+"/activate", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RepayQuote(ctx context.Context, loanID string) (string, error) {
	var out amountBody
	if err := c.do(ctx, http.MethodGet, "/v1/loans/"+escape(loanID)+"/repay-quote", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

// Repay settles the loan. amount is the most the borrower will pay; the
// charged total is returned.
func (c *Client) Repay(ctx context.Context, loanID, amount string) (string, error) {
	normalized, err := ensurePositiveAmount("repay", amount)
	if err != nil {
		return "", err
	}
	var out amountBody
	if err := c.do(ctx, http.MethodPost, "/v1/loans/"+escape(loanID)+"/repay", nil, amountBody{Amount: normalized}, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

func (c *Client) ExpireWithdraw(ctx context.Context, borrower, loanID string) (string, error) {
	var out amountBody
	if err := c.do(ctx, http.MethodPost, "/v1/loans/"+escape(loanID)+"/expire", partyQuery("borrower", borrower), nil, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

func (c *Client) HealthRatio(ctx context.Context, borrower, loanID string) (uint64, error) {
	var out struct {
		HealthRatioBps uint64 `json:"health_ratio_bps"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/loans/"+escape(loanID)+"/health", partyQuery("borrower", borrower), nil, &out); err != nil {
		return 0, err
	}
	return out.HealthRatioBps, nil
}

// Liquidate force-closes an unhealthy loan. Operator only.
func (c *Client) Liquidate(ctx context.Context, borrower, loanID, lender string) (*Liquidation, error) {
	body := map[string]string{"borrower": borrower, "lender": lender}
	var out Liquidation
	if err := c.do(ctx, http.MethodPost, "/v1/operator/loans/"+escape(loanID)+"/liquidate", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
