package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	storeerrors "github.com/abgdnv/storemanager/internal/errors"
	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// saleItemRequest is one element of a sale create or update body.
type saleItemRequest struct {
	ProductID int64  `json:"productId" validate:"required"`
	Quantity  *int32 `json:"quantity" validate:"required,min=1"`
}

type SaleHandler struct {
	service  service.SaleService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSaleHandler creates a new instance of SaleHandler with the provided service.
func NewSaleHandler(service service.SaleService, logger *slog.Logger) *SaleHandler {
	return &SaleHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger.With("component", "rest", "resource", "sales"),
	}
}

// RegisterRoutes registers the HTTP routes for sales.
func (h *SaleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
		})
	})
}

// FindAll lists the line items of all sales.
func (h *SaleHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, "Error retrieving sales", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindByID lists the line items of one sale.
func (h *SaleHandler) FindByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	lines, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "Error retrieving sale", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, lines)
}

// Create registers a sale and decrements product stock.
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	items, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), items)
	if err != nil {
		respondServiceError(w, r, h.logger, "Error creating sale", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Sale created successfully", "ID", created.ID, "items", len(created.ItemsSold))
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update overwrites line item quantities of a sale.
func (h *SaleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	items, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), id, items)
	if err != nil {
		respondServiceError(w, r, h.logger, "Error updating sale", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Sale updated successfully", "ID", id)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteByID removes a sale and restores product stock.
func (h *SaleHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, "Error deleting sale", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Sale deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a list of sale items, answering the client itself on failure.
func (h *SaleHandler) decode(w http.ResponseWriter, r *http.Request) ([]service.SaleItemDto, bool) {
	var req []saleItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if len(req) == 0 {
		respondServiceError(w, r, h.logger, "Validation failed", storeerrors.ErrSaleItemsRequired)
		return nil, false
	}
	items := make([]service.SaleItemDto, len(req))
	for i, item := range req {
		if err := h.validate.Struct(item); err != nil {
			respondServiceError(w, r, h.logger, "Validation failed", validationError(err))
			return nil, false
		}
		items[i] = service.SaleItemDto{ProductID: item.ProductID, Quantity: *item.Quantity}
	}
	return items, true
}
