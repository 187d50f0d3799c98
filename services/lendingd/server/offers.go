package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"crosslend/native/tier"
)

func (s *Server) createTier(w http.ResponseWriter, r *http.Request) {
	var req createTierRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	mint, err := parseAddressField("lend_mint", req.LendMint)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	receiver, err := parseAddressField("receiver", req.Receiver)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	cfg, err := s.tiers.CreateTier(caller(r), tier.Config{
		ID:           req.ID,
		Amount:       req.Amount,
		LendMint:     mint,
		LenderFeeBps: req.LenderFeeBps,
		Duration:     req.DurationSecs,
		Receiver:     receiver,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tierToJSON(cfg))
}

func (s *Server) getTier(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.tiers.Tier(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tierToJSON(cfg))
}

func (s *Server) closeTier(w http.ResponseWriter, r *http.Request) {
	if err := s.tiers.CloseTier(caller(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createLendOffer(w http.ResponseWriter, r *http.Request) {
	var req createLendOfferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	mint, err := parseAddressField("mint", req.Mint)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	offer, err := s.lending.CreateLendOffer(caller(r), req.TierID, req.OfferID, req.InterestBps, mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lendOfferToJSON(offer))
}

func (s *Server) listLendOffers(w http.ResponseWriter, r *http.Request) {
	lender, err := partyFromQuery(r, "lender")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	offers, err := s.state.ListLendOffers(lender)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]lendOfferJSON, 0, len(offers))
	for _, offer := range offers {
		out = append(out, lendOfferToJSON(offer))
	}
	writeJSON(w, http.StatusOK, map[string]any{"lend_offers": out})
}

func (s *Server) getLendOffer(w http.ResponseWriter, r *http.Request) {
	lender, err := partyFromQuery(r, "lender")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	offer, err := s.lending.LendOffer(lender, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lendOfferToJSON(offer))
}

func (s *Server) updateLendOfferInterest(w http.ResponseWriter, r *http.Request) {
	var req updateInterestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.lending.UpdateLendOfferInterest(caller(r), id, req.InterestBps); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondLendOffer(w, r, id)
}

func (s *Server) requestCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.lending.RequestCancel(caller(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondLendOffer(w, r, id)
}

func (s *Server) closeLendOffer(w http.ResponseWriter, r *http.Request) {
	if err := s.lending.CloseLendOffer(caller(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) executeCancel(w http.ResponseWriter, r *http.Request) {
	var req executeCancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	lender, err := parseAddressField("lender", req.Lender)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	waiting, err := parseAmount("waiting_interest", req.WaitingInterest)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	refunded, err := s.lending.ExecuteCancel(capabilityFrom(r), lender, chi.URLParam(r, "id"), waiting)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amountString(refunded)})
}

func (s *Server) respondLendOffer(w http.ResponseWriter, r *http.Request, id string) {
	offer, err := s.lending.LendOffer(caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lendOfferToJSON(offer))
}
