package controllers

import (
	"net/http"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/responses"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/validators"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/barcode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/products"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
)

// ProductLookupResult pairs a normalized code with the catalog's answer.
type ProductLookupResult struct {
	Code         string         `json:"code"`
	Shape        string         `json:"shape"`
	CheckDigitOK bool           `json:"check_digit_ok"`
	Product      ledger.Product `json:"product"`
	Registered   bool           `json:"registered"`
}

// LookupProduct normalizes a raw scan value and resolves it against the
// catalog. Handles GET /api/products?code=...
func LookupProduct(catalog products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		raw, err := validators.RequireQuery(r, "code")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		code, err := barcode.Normalize(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := catalog.FindByCode(r.Context(), code.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, ProductLookupResult{
			Code:         code.Value,
			Shape:        string(code.Shape),
			CheckDigitOK: code.CheckDigitOK,
			Product:      product,
			Registered:   product.Registered(),
		})
	}
}
