package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kelvinchng/storefront-backend/api/responses"
	"github.com/kelvinchng/storefront-backend/api/validators"
	"github.com/kelvinchng/storefront-backend/internal/inventory"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
	"github.com/kelvinchng/storefront-backend/pkg/logger"
)

type inventoryResetPayload struct {
	ProductIDs []string `json:"product_ids" validate:"omitempty,dive,uuid"`
}

// AdminResetInventory restores stock to each product's initial quantity,
// undoing walkthrough purchases. An empty body or empty product_ids list
// resets every product.
func AdminResetInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload inventoryResetPayload
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		ids := make([]uuid.UUID, 0, len(payload.ProductIDs))
		for _, raw := range payload.ProductIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product_ids must be valid UUIDs"))
				return
			}
			ids = append(ids, id)
		}

		if err := svc.ResetToInitial(r.Context(), ids); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"reset": true})
	}
}
