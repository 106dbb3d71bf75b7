package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

func cartLines() []ledger.LineItem {
	return []ledger.LineItem{
		{Product: ledger.Product{ID: 10, Code: "4901234567894", Name: "お茶", Price: 150}, Quantity: 3},
	}
}

func localTotals() ledger.Totals {
	return ledger.Totals{Subtotal: 450, Tax: 45, Total: 495}
}

func TestSubmitSendsSnakeCaseItems(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"trade_id":1001,"subtotal":450,"tax":45,"total":495}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, Identity{CashierCode: "9999999999999", StoreCode: "30", PosID: "90"}, time.Second)
	settlement, err := c.Submit(context.Background(), cartLines(), localTotals())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), settlement.TradeID)
	assert.Equal(t, localTotals(), settlement.Totals)

	assert.Equal(t, "9999999999999", got["cashier_code"])
	assert.Equal(t, "30", got["store_code"])
	assert.Equal(t, "90", got["pos_id"])

	items, ok := got["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "4901234567894", item["product_code"])
	assert.Equal(t, "お茶", item["product_name"])
	assert.Equal(t, float64(150), item["unit_price"])
	assert.Equal(t, float64(3), item["quantity"])
}

func TestSubmitFallsBackToLocalTotals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Old stub shape: no settlement figures at all.
		w.Write([]byte(`{"id":55,"status":"ok"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, Identity{}, time.Second)
	settlement, err := c.Submit(context.Background(), cartLines(), localTotals())
	require.NoError(t, err)
	assert.Equal(t, int64(55), settlement.TradeID, "legacy id should stand in for trade_id")
	assert.Equal(t, localTotals(), settlement.Totals)
}

func TestSubmitPrefersCollaboratorFigures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trade_id":7,"subtotal":400,"tax":40,"total":440}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, Identity{}, time.Second)
	settlement, err := c.Submit(context.Background(), cartLines(), localTotals())
	require.NoError(t, err)
	assert.Equal(t, ledger.Totals{Subtotal: 400, Tax: 40, Total: 440}, settlement.Totals)
}

func TestSubmitEmptyCart(t *testing.T) {
	c := NewClient("http://unused", Identity{}, time.Second)
	_, err := c.Submit(context.Background(), nil, ledger.Totals{})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestSubmitReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, Identity{}, time.Second)
	_, err := c.Submit(context.Background(), cartLines(), localTotals())
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())
}

func TestSubmitBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, Identity{}, time.Second)
	_, err := c.Submit(context.Background(), cartLines(), localTotals())
	require.Error(t, err)
	require.NotNil(t, pkgerrors.As(err))
}

func TestLocalServiceIssuesSequentialTrades(t *testing.T) {
	s := &LocalService{}
	first, err := s.Submit(context.Background(), cartLines(), localTotals())
	require.NoError(t, err)
	second, err := s.Submit(context.Background(), cartLines(), localTotals())
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.TradeID)
	assert.Equal(t, int64(2), second.TradeID)
	assert.Equal(t, localTotals(), first.Totals)
}
