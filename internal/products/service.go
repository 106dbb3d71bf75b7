// Package products looks barcodes up in the store catalog. Lookups that
// find nothing still succeed: the caller gets the unregistered placeholder
// so the cart can show the row.
package products

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
)

const (
	// UnregisteredName labels codes the catalog does not know.
	UnregisteredName = "未登録コード（マスタ未登録）"

	dummyName  = "ダミー商品"
	dummyID    = 1
	dummyPrice = 123
)

// Service resolves a normalized barcode to a product.
type Service interface {
	FindByCode(ctx context.Context, code string) (ledger.Product, error)
}

// Unregistered builds the placeholder row for a code the catalog rejected.
func Unregistered(code string) ledger.Product {
	return ledger.Product{ID: 0, Code: code, Name: UnregisteredName, Price: 0}
}

// Client queries the catalog collaborator over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// catalogItem tolerates both payload shapes the collaborator has shipped:
// a bare product object and an {items:[...]} envelope around the same.
type catalogItem struct {
	PrdID int64  `json:"prdId"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type catalogResponse struct {
	catalogItem
	Items []catalogItem `json:"items"`
}

// FindByCode asks the catalog for the code. A missing product is not an
// error; the unregistered placeholder comes back instead. Only transport
// failures surface as errors.
func (c *Client) FindByCode(ctx context.Context, code string) (ledger.Product, error) {
	endpoint := fmt.Sprintf("%s/api/products?code=%s", c.baseURL, url.QueryEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ledger.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "building catalog request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return ledger.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying catalog")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return Unregistered(code), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ledger.Product{}, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("catalog returned status %d", resp.StatusCode))
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ledger.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding catalog response")
	}

	item := payload.catalogItem
	if len(payload.Items) > 0 {
		item = payload.Items[0]
	}
	if item.Code == "" && item.Name == "" {
		return Unregistered(code), nil
	}
	if item.Code == "" {
		item.Code = code
	}
	return ledger.Product{
		ID:    item.PrdID,
		Code:  item.Code,
		Name:  item.Name,
		Price: item.Price,
	}, nil
}

// DummyService answers every lookup with the same synthetic product. It
// stands in for the catalog in demos and local development.
type DummyService struct{}

func (DummyService) FindByCode(ctx context.Context, code string) (ledger.Product, error) {
	return ledger.Product{ID: dummyID, Code: code, Name: dummyName, Price: dummyPrice}, nil
}
