package server

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"crosslend/native/attest"
	"crosslend/native/lending"
	"crosslend/native/wire"
)

func (s *Server) matchLendOffer(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	lender, err := parseAddressField("lender", req.Lender)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	collateralMint, err := parseAddressField("collateral_mint", req.CollateralMint)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	loan, err := s.lending.MatchLendOffer(caller(r), lending.MatchRequest{
		LoanID:            req.LoanID,
		Lender:            lender,
		LendOfferID:       req.LendOfferID,
		CollateralMint:    collateralMint,
		QuotedInterestBps: req.InterestBps,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loanOfferToJSON(loan))
}

func (s *Server) listLoanOffers(w http.ResponseWriter, r *http.Request) {
	borrower, err := partyFromQuery(r, "borrower")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	loans, err := s.state.ListLoanOffers(borrower)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]loanOfferJSON, 0, len(loans))
	for _, loan := range loans {
		out = append(out, loanOfferToJSON(loan))
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": out})
}

func (s *Server) getLoanOffer(w http.ResponseWriter, r *http.Request) {
	borrower, err := partyFromQuery(r, "borrower")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	loan, err := s.lending.LoanOffer(borrower, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanOfferToJSON(loan))
}

func (s *Server) depositCollateral(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	loan, err := s.lending.DepositCollateral(caller(r), chi.URLParam(r, "id"), amount, req.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanOfferToJSON(loan))
}

// depositForeignCollateral is the relayer entry point: the operator submits
// an attestation on behalf of the borrower named in the body.
func (s *Server) depositForeignCollateral(w http.ResponseWriter, r *http.Request) {
	var req foreignDepositRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	borrower, err := parseAddressField("borrower", req.Borrower)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	emitter, err := attest.ParseEmitter(req.Emitter)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	frame, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(req.Message), "0x"))
	if err != nil {
		badRequest(w, "message must be hex encoded")
		return
	}
	payload, err := wire.Decode(frame)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	att := attest.Attestation{
		ChainID:   req.ChainID,
		Emitter:   emitter,
		Sequence:  req.Sequence,
		Timestamp: req.Timestamp,
		Payload:   payload,
	}
	loan, err := s.lending.DepositForeignCollateral(capabilityFrom(r), borrower, chi.URLParam(r, "id"), att, amount, req.Decimals)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanOfferToJSON(loan))
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	loan, err := s.lending.Activate(caller(r), chi.URLParam(r, "id"), req.CollateralFeed, req.LendFeed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanOfferToJSON(loan))
}

func (s *Server) repayQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.lending.RepayQuote(caller(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(quote)})
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req repayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	charged, err := s.lending.Repay(caller(r), chi.URLParam(r, "id"), amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(charged)})
}

func (s *Server) expireWithdraw(w http.ResponseWriter, r *http.Request) {
	borrower, err := partyFromQuery(r, "borrower")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	returned, err := s.lending.ExpireWithdraw(caller(r), borrower, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(returned)})
}

func (s *Server) healthRatio(w http.ResponseWriter, r *http.Request) {
	borrower, err := partyFromQuery(r, "borrower")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ratio, err := s.lending.HealthRatioBps(borrower, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{HealthRatioBps: ratio})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	borrower, err := parseAddressField("borrower", req.Borrower)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	lender, err := parseAddressField("lender", req.Lender)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	result, err := s.lending.Liquidate(capabilityFrom(r), borrower, chi.URLParam(r, "id"), lender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, liquidationResponse{
		TotalRepay:       amountString(result.TotalRepay),
		LenderShare:      amountString(result.LenderShare),
		ProtocolFee:      amountString(result.ProtocolFee),
		CollateralSeized: amountString(result.CollateralSeized),
		HealthRatioBps:   result.HealthRatioBps,
	})
}

func (s *Server) pushPrice(w http.ResponseWriter, r *http.Request) {
	if s.prices == nil {
		writeProblem(w, http.StatusNotImplemented, "ManualFeedDisabled", "internal", "manual price feed not configured")
		return
	}
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Feed) == "" {
		badRequest(w, "feed required")
		return
	}
	if err := s.prices.SetDecimal(req.Feed, req.Rate, req.Confidence, s.now()); err != nil {
		badRequest(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
