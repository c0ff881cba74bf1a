package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/abgdnv/storemanager/internal/service"
	"github.com/abgdnv/storemanager/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// productRequest is the body of product create and update requests.
// Quantity is a pointer so an absent value can be told apart from zero.
type productRequest struct {
	Name     string `json:"name" validate:"required,min=5"`
	Quantity *int32 `json:"quantity" validate:"required,min=1"`
}

type ProductHandler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewProductHandler creates a new instance of ProductHandler with the provided service.
func NewProductHandler(service service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger.With("component", "rest", "resource", "products"),
	}
}

// RegisterRoutes registers the HTTP routes for products.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Put("/", h.Update)
			r.Delete("/", h.DeleteByID)
		})
	})
}

// FindAll retrieves a list of all products.
func (h *ProductHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received request to find all products")
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		respondServiceError(w, r, h.logger, "Error retrieving product list", err)
		return
	}
	h.logger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, h.logger, http.StatusOK, list)
}

// FindByID retrieves a product by its ID.
func (h *ProductHandler) FindByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "Error retrieving product", err)
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, found)
}

// Create handles the creation of a new product.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), service.ProductCreateDto{Name: req.Name, Quantity: *req.Quantity})
	if err != nil {
		respondServiceError(w, r, h.logger, "Error creating product", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, created)
}

// Update overwrites name and quantity of a product.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), id, service.ProductUpdateDto{Name: req.Name, Quantity: *req.Quantity})
	if err != nil {
		respondServiceError(w, r, h.logger, "Error updating product", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID)
	web.RespondJSON(w, h.logger, http.StatusOK, updated)
}

// DeleteByID deletes a product by its ID.
func (h *ProductHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		respondServiceError(w, r, h.logger, "Error deleting product", err)
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a product body, answering the client itself on failure.
func (h *ProductHandler) decode(w http.ResponseWriter, r *http.Request) (productRequest, bool) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		respondServiceError(w, r, h.logger, "Validation failed", validationError(err))
		return req, false
	}
	return req, true
}
