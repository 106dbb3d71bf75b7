// Package checkout submits a finished cart to the purchase collaborator and
// folds its settlement back into local terms.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

// Identity names the lane submitting the purchase.
type Identity struct {
	CashierCode string
	StoreCode   string
	PosID       string
}

// Settlement is the collaborator's answer, with local totals substituted
// for any figures it left out.
type Settlement struct {
	TradeID int64         `json:"trade_id"`
	Totals  ledger.Totals `json:"totals"`
}

// Service finalizes a cart.
type Service interface {
	Submit(ctx context.Context, lines []ledger.LineItem, local ledger.Totals) (Settlement, error)
}

// Client talks to the purchase collaborator over HTTP.
type Client struct {
	baseURL  string
	identity Identity
	client   *http.Client
}

func NewClient(baseURL string, identity Identity, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		identity: identity,
		client:   &http.Client{Timeout: timeout},
	}
}

type purchaseItem struct {
	PrdID       int64  `json:"prd_id,omitempty"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name,omitempty"`
	UnitPrice   int64  `json:"unit_price,omitempty"`
	Quantity    int64  `json:"quantity"`
}

type purchaseRequest struct {
	CashierCode string         `json:"cashier_code,omitempty"`
	StoreCode   string         `json:"store_code,omitempty"`
	PosID       string         `json:"pos_id,omitempty"`
	Items       []purchaseItem `json:"items"`
}

// purchaseResponse tolerates both the current settlement shape and the old
// stub's {id,status} answer.
type purchaseResponse struct {
	Success  *bool  `json:"success"`
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	TradeID  int64  `json:"trade_id"`
	Subtotal *int64 `json:"subtotal"`
	Tax      *int64 `json:"tax"`
	Total    *int64 `json:"total"`
}

// Submit posts the cart. Figures the collaborator omits fall back to the
// locally computed totals so the caller always gets a complete settlement.
func (c *Client) Submit(ctx context.Context, lines []ledger.LineItem, local ledger.Totals) (Settlement, error) {
	if len(lines) == 0 {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	body := purchaseRequest{
		CashierCode: c.identity.CashierCode,
		StoreCode:   c.identity.StoreCode,
		PosID:       c.identity.PosID,
		Items:       make([]purchaseItem, 0, len(lines)),
	}
	for _, line := range lines {
		body.Items = append(body.Items, purchaseItem{
			PrdID:       line.Product.ID,
			ProductCode: line.Product.Code,
			ProductName: line.Product.Name,
			UnitPrice:   line.Product.Price,
			Quantity:    line.Quantity,
		})
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "encoding purchase request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/purchase", buf)
	if err != nil {
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building purchase request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submitting purchase")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("purchase collaborator returned status %d", resp.StatusCode))
	}

	var payload purchaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Settlement{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding purchase response")
	}
	if payload.Success != nil && !*payload.Success {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeDependency, "purchase collaborator reported failure")
	}

	settlement := Settlement{TradeID: payload.TradeID, Totals: local}
	if settlement.TradeID == 0 {
		settlement.TradeID = payload.ID
	}
	if payload.Subtotal != nil {
		settlement.Totals.Subtotal = *payload.Subtotal
	}
	if payload.Tax != nil {
		settlement.Totals.Tax = *payload.Tax
	}
	if payload.Total != nil {
		settlement.Totals.Total = *payload.Total
	}
	return settlement, nil
}

// LocalService settles purchases in-process without a collaborator. Used
// alongside the dummy catalog when running standalone.
type LocalService struct {
	nextTrade atomic.Int64
}

func (s *LocalService) Submit(ctx context.Context, lines []ledger.LineItem, local ledger.Totals) (Settlement, error) {
	if len(lines) == 0 {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return Settlement{TradeID: s.nextTrade.Add(1), Totals: local}, nil
}
