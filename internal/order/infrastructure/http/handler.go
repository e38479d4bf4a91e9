package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/inventory-order-system/internal/order/application"
	"github.com/dmehra2102/inventory-order-system/internal/order/domain"
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
		tracer:  otel.Tracer("order-http"),
	}
}

type createOrderReq struct {
	Products []orderLineReq `json:"products"`
}

type orderLineReq struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type orderResp struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderDate   time.Time       `json:"orderDate"`
	TotalAmount json.Number     `json:"totalAmount"`
	Products    []orderLineResp `json:"products"`
}

type orderLineResp struct {
	ProductID   uuid.UUID   `json:"productId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
}

func toResp(o domain.Order) orderResp {
	lines := make([]orderLineResp, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, orderLineResp{
			ProductID:   item.ProductID,
			Name:        item.Name,
			Description: item.Description,
			Price:       json.Number(item.PriceAtSale.StringFixed(2)),
			Quantity:    item.Quantity,
		})
	}
	return orderResp{
		OrderID:     o.ID,
		OrderDate:   o.CreatedAt,
		TotalAmount: json.Number(o.TotalAmount.StringFixed(2)),
		Products:    lines,
	}
}

// Routes is mounted under /orders. create wraps order creation only, which is
// where the Idempotency-Key middleware belongs.
func (h *Handler) Routes(create ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.listOrders)
	r.With(create...).Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}

	items := make([]domain.ItemRequest, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, domain.ItemRequest{ProductID: p.ProductID, Quantity: p.Quantity})
	}

	o, err := h.service.CreateOrder(ctx, items)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	w.Header().Set("Location", "/orders/"+o.ID.String())
	httpjson.Write(w, http.StatusCreated, toResp(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP GetOrder")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.WriteMessage(w, http.StatusBadRequest, "invalid GUID format", "invalid_request")
		return
	}
	o, err := h.service.GetOrder(ctx, id)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toResp(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP ListOrders")
	defer span.End()

	orders, err := h.service.ListOrders(ctx)
	if err != nil {
		httpjson.WriteError(w, h.log, err)
		return
	}
	resp := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toResp(o))
	}
	httpjson.Write(w, http.StatusOK, resp)
}
