package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"crosslend/core/events"
	"crosslend/core/state"
	"crosslend/crypto"
	"crosslend/native/attest"
	"crosslend/native/custody"
	"crosslend/native/lending"
	"crosslend/native/oracle"
	"crosslend/native/tier"
	"crosslend/native/wire"
	"crosslend/services/lendingd/eventstore"
	"crosslend/services/lendingd/stream"
	"crosslend/storage"
)

const testSecret = "test-secret"

func testAddr(b byte) crypto.Address {
	var a crypto.Address
	a[len(a)-1] = b
	return a
}

var (
	usdc     = testAddr(0xA1)
	sol      = testAddr(0xB1)
	lender   = testAddr(1)
	borrower = testAddr(2)
	operator = testAddr(3)
	receiver = testAddr(4)
	vault    = testAddr(5)
	feeSink  = testAddr(6)

	remoteEmitter = attest.EmitterAddress{31: 0x42}
)

type testEnv struct {
	t      *testing.T
	hub    *stream.Hub
	srv    *httptest.Server
	state  *state.Manager
	prices *oracle.ManualFeed
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{t: t, now: time.Unix(1_700_000_000, 0)}
	clock := func() time.Time { return env.now }

	mgr := state.NewManager(storage.NewMemDB())
	require.NoError(t, mgr.Update(func(tx *state.Tx) error {
		if err := custody.RegisterAsset(tx, &custody.Asset{Mint: usdc, Symbol: "usdc", Decimals: 6, PriceFeedID: "usdc/usd"}); err != nil {
			return err
		}
		if err := custody.RegisterAsset(tx, &custody.Asset{Mint: sol, Symbol: "sol", Decimals: 9, PriceFeedID: "sol/usd"}); err != nil {
			return err
		}
		if err := attest.RegisterEmitter(tx, 2, remoteEmitter); err != nil {
			return err
		}
		ledger := custody.NewLedger(tx)
		if err := ledger.Credit(lender, usdc, big.NewInt(1_000_000000)); err != nil {
			return err
		}
		if err := ledger.Credit(borrower, usdc, big.NewInt(50_000000)); err != nil {
			return err
		}
		return ledger.Credit(borrower, sol, big.NewInt(10_000_000_000))
	}))
	env.state = mgr

	db, err := eventstore.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, eventstore.AutoMigrate(db))
	store := eventstore.New(db, nil)
	env.hub = stream.NewHub()
	emitter := events.MultiEmitter{store, env.hub}

	params := lending.DefaultParams()
	params.CollateralVault = vault
	params.FeeCollector = feeSink
	authority := lending.NewAuthority(operator)

	env.prices = oracle.NewManualFeed()
	require.NoError(t, env.prices.SetDecimal("usdc/usd", "1", "", env.now))
	require.NoError(t, env.prices.SetDecimal("sol/usd", "50", "", env.now))

	engine := lending.NewEngine(mgr.Lending(), params, authority)
	engine.SetFeeds(env.prices)
	engine.SetVerifier(attest.NewVerifier(1, 10*time.Minute))
	engine.SetEmitter(emitter)
	engine.SetNowFunc(clock)

	tiers := tier.NewEngine(mgr.Tiers(), operator)
	tiers.SetEmitter(emitter)

	srv, err := New(Config{
		Lending:   engine,
		Tiers:     tiers,
		State:     mgr,
		Authority: authority,
		Prices:    env.prices,
		Events:    store,
		Stream:    env.hub,
		Auth:      AuthConfig{HMACSecret: testSecret, Issuer: "lendingd"},
		Now:       clock,
	})
	require.NoError(t, err)
	env.srv = httptest.NewServer(srv.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) token(subject crypto.Address) string {
	e.t.Helper()
	tok, err := IssueToken(testSecret, subject, "lendingd", "", time.Hour, time.Now())
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(as crypto.Address, method, path string, body any) (int, map[string]any) {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if !as.IsZero() {
		req.Header.Set("Authorization", "Bearer "+e.token(as))
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	env, _ := body["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func (e *testEnv) createTierAndOffer() {
	e.t.Helper()
	status, body := e.do(operator, http.MethodPost, "/v1/tiers", createTierRequest{
		ID:           "gold",
		Amount:       100,
		LendMint:     usdc.String(),
		LenderFeeBps: 1000,
		DurationSecs: 1000,
		Receiver:     receiver.String(),
	})
	require.Equal(e.t, http.StatusCreated, status, body)

	status, body = e.do(lender, http.MethodPost, "/v1/lend-offers", createLendOfferRequest{
		TierID:      "gold",
		OfferID:     "offer-1",
		InterestBps: 500,
		Mint:        usdc.String(),
	})
	require.Equal(e.t, http.StatusCreated, status, body)
	require.Equal(e.t, "100000000", body["amount"])
}

func TestHealthzIsPublic(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(crypto.Address{}, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])
}

func TestRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(crypto.Address{}, http.MethodGet, "/v1/loans", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "Unauthenticated", errorCode(body))

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/v1/loans", nil)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", lender, "lendingd", "", time.Hour, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err := env.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.createTierAndOffer()

	status, body := env.do(borrower, http.MethodPost, "/v1/loans", matchRequest{
		LoanID:         "loan-1",
		Lender:         lender.String(),
		LendOfferID:    "offer-1",
		CollateralMint: sol.String(),
		InterestBps:    500,
	})
	require.Equal(t, http.StatusCreated, status, body)
	require.Equal(t, "awaiting_collateral", body["status"])

	status, body = env.do(borrower, http.MethodPost, "/v1/loans/loan-1/collateral", depositRequest{Amount: "4000000000", Decimals: 9})
	require.Equal(t, http.StatusOK, status, body)

	status, body = env.do(borrower, http.MethodPost, "/v1/loans/loan-1/activate", activateRequest{CollateralFeed: "sol/usd", LendFeed: "usdc/usd"})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "active", body["status"])
	require.EqualValues(t, 20000, body["health_ratio_bps"])

	env.now = env.now.Add(500 * time.Second)
	status, body = env.do(borrower, http.MethodGet, "/v1/loans/loan-1/repay-quote", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "102500000", body["amount"])

	status, body = env.do(borrower, http.MethodPost, "/v1/loans/loan-1/repay", repayRequest{Amount: "102500000"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = env.do(lender, http.MethodGet, "/v1/balances/"+usdc.String(), nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "992250000", body["amount"])

	status, body = env.do(lender, http.MethodGet, "/v1/events?loan_id=loan-1", nil)
	require.Equal(t, http.StatusOK, status, body)
	list, _ := body["events"].([]any)
	require.NotEmpty(t, list)
	types := map[string]bool{}
	for _, raw := range list {
		evt := raw.(map[string]any)
		types[evt["type"].(string)] = true
	}
	require.True(t, types[events.TypeLoanActivated])
	require.True(t, types[events.TypeLoanRepaid])
}

func TestErrorStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	env.createTierAndOffer()

	// duplicate offer id is a validation failure
	status, body := env.do(lender, http.MethodPost, "/v1/lend-offers", createLendOfferRequest{
		TierID: "gold", OfferID: "offer-1", InterestBps: 500, Mint: usdc.String(),
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidOfferId", errorCode(body))

	// closing an offer that is still Created is a state conflict
	status, body = env.do(lender, http.MethodPost, "/v1/lend-offers/offer-1/close", nil)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "InvalidOfferStatus", errorCode(body))

	// non-operators cannot reach operator routes
	status, body = env.do(lender, http.MethodPost, "/v1/operator/prices", priceRequest{Feed: "sol/usd", Rate: "10"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "InvalidSystem", errorCode(body))

	status, body = env.do(borrower, http.MethodPost, "/v1/loans/loan-1/repay", repayRequest{Amount: "-1"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "InvalidRequest", errorCode(body))
}

func TestOperatorCancelAndPrices(t *testing.T) {
	env := newTestEnv(t)
	env.createTierAndOffer()

	status, body := env.do(lender, http.MethodPost, "/v1/lend-offers/offer-1/cancel-request", nil)
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "canceling", body["status"])

	status, body = env.do(operator, http.MethodPost, "/v1/operator/lend-offers/offer-1/cancel", executeCancelRequest{
		Lender:          lender.String(),
		WaitingInterest: "0",
	})
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, "100000000", body["amount"])

	status, _ = env.do(operator, http.MethodPost, "/v1/operator/prices", priceRequest{Feed: "sol/usd", Rate: "42.5"})
	require.Equal(t, http.StatusNoContent, status)
	quote, err := env.prices.Price("sol/usd")
	require.NoError(t, err)
	require.Equal(t, 0, quote.Rate.Cmp(big.NewRat(85, 2)))
}

func TestForeignCollateralRequiresRelayer(t *testing.T) {
	env := newTestEnv(t)
	env.createTierAndOffer()
	status, body := env.do(borrower, http.MethodPost, "/v1/loans", matchRequest{
		LoanID: "loan-1", Lender: lender.String(), LendOfferID: "offer-1", CollateralMint: sol.String(), InterestBps: 500,
	})
	require.Equal(t, http.StatusCreated, status, body)

	payload, err := attest.CollateralPayload{TargetChainID: 1, CollateralAmount: 4_000_000_000, CollateralDecimals: 9}.MarshalBinary()
	require.NoError(t, err)
	frame, err := wire.Encode(payload)
	require.NoError(t, err)
	deposit := func(message []byte) foreignDepositRequest {
		return foreignDepositRequest{
			Borrower:  borrower.String(),
			Amount:    "4000000000",
			Decimals:  9,
			ChainID:   2,
			Emitter:   remoteEmitter.String(),
			Sequence:  1,
			Timestamp: uint64(env.now.Unix()),
			Message:   hex.EncodeToString(message),
		}
	}

	// A borrower cannot vouch for its own collateral.
	status, body = env.do(borrower, http.MethodPost, "/v1/operator/loans/loan-1/foreign-collateral", deposit(frame))
	require.Equal(t, http.StatusForbidden, status, body)
	require.Equal(t, "InvalidSystem", errorCode(body))
	status, body = env.do(borrower, http.MethodPost, "/v1/loans/loan-1/activate", activateRequest{CollateralFeed: "sol/usd", LendFeed: "usdc/usd"})
	require.Equal(t, http.StatusUnprocessableEntity, status, body)
	require.Equal(t, "NotEnoughCollateral", errorCode(body))

	status, body = env.do(operator, http.MethodPost, "/v1/operator/loans/loan-1/foreign-collateral", deposit(frame[:len(frame)-1]))
	require.Equal(t, http.StatusBadRequest, status, body)
	require.Equal(t, "LengthMismatch", errorCode(body))

	status, body = env.do(operator, http.MethodPost, "/v1/operator/loans/loan-1/foreign-collateral", deposit(frame))
	require.Equal(t, http.StatusOK, status, body)
	require.Equal(t, true, body["foreign_collateral"])
	require.Equal(t, borrower.String(), body["borrower"])
}

func TestEventStreamPushesCommittedEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/v1/events/stream?type=" + events.TypeOfferCreated
	_, _, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err, "stream must require a bearer token")

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + env.token(lender)}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")
	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	env.createTierAndOffer()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt struct {
		Type       string            `json:"type"`
		Attributes map[string]string `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeOfferCreated, evt.Type)
	require.Equal(t, "offer-1", evt.Attributes["offerId"])
}
