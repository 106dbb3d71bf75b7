package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/responses"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/validators"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/barcode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/checkout"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/products"
	pkgerrors "github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/errors"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/metrics"
)

// RegisterState is the cart as the frontend renders it.
type RegisterState struct {
	RegisterID string            `json:"register_id"`
	Lines      []ledger.LineItem `json:"lines"`
	Totals     ledger.Totals     `json:"totals"`
}

// PurchaseResult is the settlement summary after a completed purchase.
type PurchaseResult struct {
	TradeID     int64         `json:"trade_id"`
	Totals      ledger.Totals `json:"totals"`
	PurchasedAt time.Time     `json:"purchased_at"`
}

// OpenRegister creates a register with an empty ledger. Handles
// POST /api/registers.
func OpenRegister(store *ledger.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := store.Open()
		ctx := logg.WithRegisterID(r.Context(), reg.ID)
		logg.Info(ctx, "register opened")
		responses.WriteSuccessStatus(w, http.StatusCreated, registerState(reg))
	}
}

// GetRegister returns the register's rows and totals. Handles
// GET /api/registers/{registerId}.
func GetRegister(store *ledger.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := store.Get(chi.URLParam(r, "registerId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, registerState(reg))
	}
}

// CloseRegister discards the register. Handles
// DELETE /api/registers/{registerId}.
func CloseRegister(store *ledger.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "registerId")
		store.Close(id)
		logg.Info(logg.WithRegisterID(r.Context(), id), "register closed")
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}

type addItemRequest struct {
	Code string `json:"code" validate:"required"`
}

// AddItem normalizes a scanned code, resolves it against the catalog and
// puts it in the cart. Handles POST /api/registers/{registerId}/items.
func AddItem(store *ledger.Store, catalog products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := store.Get(chi.URLParam(r, "registerId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithRegisterID(r.Context(), reg.ID)

		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		code, err := barcode.Normalize(body.Code)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		product, err := catalog.FindByCode(ctx, code.Value)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		line, err := reg.Ledger.AddOrIncrement(product)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		logg.Info(logg.WithField(ctx, "code", code.Value), "item added")
		responses.WriteSuccess(w, map[string]any{
			"line":   line,
			"totals": reg.Ledger.Totals(),
		})
	}
}

type updateItemRequest struct {
	// Exactly one of quantity or op is expected; quantity wins when both
	// are present.
	Quantity *int64 `json:"quantity" validate:"omitempty,min=0"`
	Op       string `json:"op" validate:"omitempty,oneof=increment decrement"`
}

// UpdateItem changes a row's quantity. Handles
// PATCH /api/registers/{registerId}/items/{code}.
func UpdateItem(store *ledger.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := store.Get(chi.URLParam(r, "registerId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithRegisterID(r.Context(), reg.ID)
		code := chi.URLParam(r, "code")

		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var line ledger.LineItem
		switch {
		case body.Quantity != nil:
			line, err = reg.Ledger.SetQuantity(code, *body.Quantity)
		case body.Op == "increment":
			line, err = reg.Ledger.Increment(code)
		case body.Op == "decrement":
			line, err = reg.Ledger.Decrement(code)
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "quantity or op is required")
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"line":   line,
			"totals": reg.Ledger.Totals(),
		})
	}
}

// RemoveItem deletes a row. Handles
// DELETE /api/registers/{registerId}/items/{code}.
func RemoveItem(store *ledger.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg, err := store.Get(chi.URLParam(r, "registerId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithRegisterID(r.Context(), reg.ID)

		if err := reg.Ledger.Remove(chi.URLParam(r, "code")); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"totals": reg.Ledger.Totals()})
	}
}

// Purchase settles the register through the purchase collaborator. The
// ledger is cleared only after the collaborator accepts; any failure leaves
// the cart intact for retry. Handles
// POST /api/registers/{registerId}/purchase.
func Purchase(store *ledger.Store, svc checkout.Service, m *metrics.ScanMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		reg, err := store.Get(chi.URLParam(r, "registerId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithRegisterID(r.Context(), reg.ID)

		settlement, err := svc.Submit(ctx, reg.Ledger.Lines(), reg.Ledger.Totals())
		if err != nil {
			m.IncPurchase("error")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		reg.Ledger.Clear()
		m.IncPurchase("ok")
		logg.Info(logg.WithField(ctx, "trade_id", settlement.TradeID), "purchase settled")
		responses.WriteSuccess(w, PurchaseResult{
			TradeID:     settlement.TradeID,
			Totals:      settlement.Totals,
			PurchasedAt: time.Now().UTC(),
		})
	}
}

func registerState(reg *ledger.Register) RegisterState {
	return RegisterState{
		RegisterID: reg.ID,
		Lines:      reg.Ledger.Lines(),
		Totals:     reg.Ledger.Totals(),
	}
}
