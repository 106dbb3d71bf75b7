package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/products"
)

func lookupRecorder(t *testing.T, catalog products.Service, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	LookupProduct(catalog, testLogger()).ServeHTTP(rec, req)
	return rec
}

func TestLookupProductNormalizesBeforeLookup(t *testing.T) {
	// The catalog knows the EAN-13 form; the scanner delivered UPC-A.
	catalog := &stubCatalog{products: map[string]ledger.Product{
		"0490123456789": {ID: 3, Code: "0490123456789", Name: "輸入菓子", Price: 300},
	}}

	rec := lookupRecorder(t, catalog, "/api/products?code=490123456789")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data ProductLookupResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if envelope.Data.Code != "0490123456789" {
		t.Fatalf("normalized code = %q", envelope.Data.Code)
	}
	if envelope.Data.Product.ID != 3 {
		t.Fatalf("product = %+v", envelope.Data.Product)
	}
	if !envelope.Data.Registered {
		t.Fatal("registered flag not set")
	}
}

func TestLookupProductUnknownCode(t *testing.T) {
	rec := lookupRecorder(t, teaCatalog(), "/api/products?code=4999999999996")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var envelope struct {
		Data ProductLookupResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if envelope.Data.Registered {
		t.Fatalf("expected placeholder, got %+v", envelope.Data.Product)
	}
	if envelope.Data.Product.Name != products.UnregisteredName {
		t.Fatalf("name = %q", envelope.Data.Product.Name)
	}
}

func TestLookupProductRequiresCode(t *testing.T) {
	rec := lookupRecorder(t, teaCatalog(), "/api/products")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLookupProductRejectsInvalidCode(t *testing.T) {
	rec := lookupRecorder(t, teaCatalog(), "/api/products?code=%21%21")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}
