package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/application"
	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/httpjson"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("catalog-http"),
	}
}

type createProductReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type updateProductReq struct {
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

type productResp struct {
	ProductID   uuid.UUID   `json:"productId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
}

func toResp(p domain.Product) productResp {
	return productResp{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       json.Number(p.Price.StringFixed(2)),
		Stock:       p.Stock,
	}
}

// Routes is mounted under /products.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.listProducts)
	r.Post("/", h.createProduct)
	r.Patch("/{id}", h.updateProduct)
	r.Delete("/{id}", h.deleteProduct)

	return r
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	products, err := h.service.ListProducts(ctx)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	resp := make([]productResp, 0, len(products))
	for _, p := range products {
		resp = append(resp, toResp(p))
	}
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req createProductReq
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}

	p, err := h.service.CreateProduct(ctx, domain.NewProduct{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	w.Header().Set("Location", "/products/"+p.ID.String())
	httpjson.Write(w, http.StatusCreated, toResp(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	var req updateProductReq
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}

	p, err := h.service.UpdateProduct(ctx, id, domain.Patch{Price: req.Price, Stock: req.Stock})
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResp(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct")
	defer span.End()

	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(ctx, id); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.WriteMessage(w, http.StatusBadRequest, "invalid GUID format", "invalid_request")
		return uuid.Nil, false
	}
	return id, true
}
