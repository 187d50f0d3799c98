package lending

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientSendsBearerAndDecodes(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		require.Equal(t, "/v1/loans/loan-1/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]uint64{"health_ratio_bps": 18000})
	}))
	defer srv.Close()

	client, err := New(srv.URL+"/", "tok")
	require.NoError(t, err)
	ratio, err := client.HealthRatio(context.Background(), "lend1borrower", "loan-1")
	require.NoError(t, err)
	require.Equal(t, uint64(18000), ratio)
	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "borrower=lend1borrower", gotQuery)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"HealthRatioLimit","category":"risk","message":"still healthy"}}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "tok")
	require.NoError(t, err)
	_, err = client.Liquidate(context.Background(), "b", "loan-1", "l")
	require.Error(t, err)
	require.Equal(t, "HealthRatioLimit", ErrorCode(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestRepayRejectsNonPositiveAmounts(t *testing.T) {
	client, err := New("http://127.0.0.1:1", "")
	require.NoError(t, err)
	_, err = client.Repay(context.Background(), "loan-1", "0")
	require.ErrorContains(t, err, "positive integer")
	_, err = client.DepositCollateral(context.Background(), "loan-1", "abc", 9)
	require.ErrorContains(t, err, "positive integer")
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("  ", "tok")
	require.Error(t, err)
}

func TestForeignDepositUsesOperatorRoute(t *testing.T) {
	var gotPath string
	var got ForeignDeposit
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"loan-1","foreign_collateral":true}`))
	}))
	defer srv.Close()

	client, err := New(srv.URL, "operator-token")
	require.NoError(t, err)
	_, err = client.DepositForeignCollateral(context.Background(), "loan-1", ForeignDeposit{Amount: "5", ChainID: 2})
	require.ErrorContains(t, err, "borrower required")

	loan, err := client.DepositForeignCollateral(context.Background(), "loan-1", ForeignDeposit{Borrower: "lend1borrower", Amount: "5", ChainID: 2})
	require.NoError(t, err)
	require.True(t, loan.ForeignCollateral)
	require.Equal(t, "/v1/operator/loans/loan-1/foreign-collateral", gotPath)
	require.Equal(t, "lend1borrower", got.Borrower)
}
