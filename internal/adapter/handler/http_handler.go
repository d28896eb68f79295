package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/service"
)

type HTTPHandler struct {
	shopService *service.ShopService
	logger      *zap.Logger
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AddItemHTTPRequest struct {
	RequestID string          `json:"request_id"`
	Location  domain.Location `json:"location"`
	Name      string          `json:"name"`
	Quantity  uint32          `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// EditItemHTTPRequest applies whichever fields are set, in the order
// restock, price, name. Either all of them apply or none do.
type EditItemHTTPRequest struct {
	RequestID string           `json:"request_id"`
	Restock   *int64           `json:"restock,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Name      *string          `json:"name,omitempty"`
}

type MoveItemHTTPRequest struct {
	RequestID string          `json:"request_id"`
	From      domain.Location `json:"from"`
	To        domain.Location `json:"to"`
}

type ContainerHTTPRequest struct {
	ID       uint32 `json:"id"`
	Capacity uint32 `json:"capacity"`
}

func NewHTTPHandler(shopService *service.ShopService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{shopService: shopService, logger: logger}
}

// RegisterRoutes registers the shop routes with the router
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Item routes
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items", h.AddItem).Methods("POST")
	api.HandleFunc("/items/locate", h.LocateItem).Methods("POST")
	api.HandleFunc("/items/{row:[0-9]+}/{rack:[0-9]+}/{zone:[0-9]+}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{row:[0-9]+}/{rack:[0-9]+}/{zone:[0-9]+}", h.RemoveItem).Methods("DELETE")
	api.HandleFunc("/items/{row:[0-9]+}/{rack:[0-9]+}/{zone:[0-9]+}", h.EditItem).Methods("PATCH")
	api.HandleFunc("/moves", h.MoveItem).Methods("POST")

	// Shelf routes
	api.HandleFunc("/layout", h.GetLayout).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/rows", h.AddRow).Methods("POST")
	api.HandleFunc("/rows/{row:[0-9]+}/racks", h.AddRack).Methods("POST")
	api.HandleFunc("/rows/{row:[0-9]+}/racks/{rack:[0-9]+}/zones", h.AddZone).Methods("POST")
}

// AddItem handles POST /api/items
func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, Response{Message: "missing required fields"})
		return
	}

	item := domain.NewProduct(req.Name, req.Quantity, req.Price, req.ExpiresAt)
	if err := h.shopService.AddItem(r.Context(), req.RequestID, item, req.Location); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domain.Placement[domain.Product]{Location: req.Location, Item: item})
}

// GetItem handles GET /api/items/{row}/{rack}/{zone}
func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationVars(w, r)
	if !ok {
		return
	}

	item, found := h.shopService.GetItem(loc)
	if !found {
		writeJSON(w, http.StatusNotFound, Response{Message: "zone is empty or does not exist"})
		return
	}

	writeJSON(w, http.StatusOK, domain.Placement[domain.Product]{Location: loc, Item: item})
}

// RemoveItem handles DELETE /api/items/{row}/{rack}/{zone}
func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationVars(w, r)
	if !ok {
		return
	}

	if err := h.shopService.RemoveItem(r.Context(), r.URL.Query().Get("request_id"), loc); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EditItem handles PATCH /api/items/{row}/{rack}/{zone}
func (h *HTTPHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationVars(w, r)
	if !ok {
		return
	}
	var req EditItemHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	edit := service.ItemEdit{Restock: req.Restock, Price: req.Price, Name: req.Name}
	if edit.Empty() {
		writeJSON(w, http.StatusBadRequest, Response{Message: "nothing to change"})
		return
	}

	item, err := h.shopService.Edit(r.Context(), req.RequestID, loc, edit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.Placement[domain.Product]{Location: loc, Item: item})
}

// RemoveItem handles DELETE /api/items/{row}/{rack}/{zone}
func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationVars(w, r)
	if !ok {
		return
	}

	if err := h.shopService.RemoveItem(r.Context(), r.URL.Query().Get("request_id"), loc); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EditItem handles PATCH /api/items/{row}/{rack}/{zone}
func (h *HTTPHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	loc, ok := locationVars(w, r)
	if !ok {
		return
	}
	var req EditItemHTTPRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Restock == nil && req.Price == nil && req.Name == nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "nothing to change"})
		return
	}

	// each edit gets its own idempotency key
	reqID := func(suffix string) string {
		if req.RequestID == "" {
			return ""
		}
		return req.RequestID + ":" + suffix
	}

	var (
		item domain.Product
		err  error
	)
	if req.Restock != nil {
		if item, err = h.shopService.Restock(r.Context(), reqID("restock"), loc, *req.Restock); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Price != nil {
		if item, err = h.shopService.Reprice(r.Context(), reqID("price"), loc, *req.Price); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Name != nil {
		if item, err = h.shopService.Rename(r.Context(), reqID("name"), loc, *req.Name); err != nil {
			h.writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, domain.Placement[domain.Product]{Location: loc, Item: item})
}

// ListItems handles GET /api/items, optionally filtered by ?name=
func (h *HTTPHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		placements := h.shopService.Placements()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items": placements,
			"count": len(placements),
		})
		return
	}

	placements, err := h.shopService.ItemsByName(name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": placements,
		"count": len(placements),
	})
}

// LocateItem handles POST /api/items/locate. The body is a full item; only
// an exact match is found.
func (h *HTTPHandler) LocateItem(w http.ResponseWriter, r *http.Request) {
	var item domain.Product
	if !decode(w, r, &item) {
		return
	}

	loc, found := h.shopService.LocateItem(item)
	if !found {
		writeJSON(w, http.StatusNotFound, Response{Message: "item not found"})
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

// MoveItem handles POST /api/moves
func (h *HTTPHandler) MoveItem(w http.ResponseWriter, r *http.Request) {
	var req MoveItemHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.shopService.MoveItem(r.Context(), req.RequestID, req.From, req.To); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Message: "item moved"})
}

// GetLayout handles GET /api/layout
func (h *HTTPHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.shopService.Layout())
}

// GetStats handles GET /api/stats
func (h *HTTPHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.shopService.Stats())
}

// AddRow handles POST /api/rows
func (h *HTTPHandler) AddRow(w http.ResponseWriter, r *http.Request) {
	var req ContainerHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.shopService.AddRow(req.ID, req.Capacity); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "row added"})
}

// AddRack handles POST /api/rows/{row}/racks
func (h *HTTPHandler) AddRack(w http.ResponseWriter, r *http.Request) {
	row, ok := uintVar(w, r, "row")
	if !ok {
		return
	}
	var req ContainerHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.shopService.AddRack(row, req.ID, req.Capacity); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "rack added"})
}

// AddZone handles POST /api/rows/{row}/racks/{rack}/zones
func (h *HTTPHandler) AddZone(w http.ResponseWriter, r *http.Request) {
	row, ok := uintVar(w, r, "row")
	if !ok {
		return
	}
	rack, ok := uintVar(w, r, "rack")
	if !ok {
		return
	}
	var req ContainerHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.shopService.AddZone(row, rack, req.ID); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{Success: true, Message: "zone added"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, Response{Message: message})
}

// statusFor maps service errors to an HTTP status and a client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrMoveFailed):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrLocationNotFound), errors.Is(err, domain.ErrItemNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrCapacityExceeded), errors.Is(err, domain.ErrSlotExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, service.ErrEmptyName):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return false
	}
	return true
}

func locationVars(w http.ResponseWriter, r *http.Request) (domain.Location, bool) {
	var loc domain.Location
	var ok bool
	if loc.Row, ok = uintVar(w, r, "row"); !ok {
		return loc, false
	}
	if loc.Rack, ok = uintVar(w, r, "rack"); !ok {
		return loc, false
	}
	if loc.Zone, ok = uintVar(w, r, "zone"); !ok {
		return loc, false
	}
	return loc, true
}

func uintVar(w http.ResponseWriter, r *http.Request, name string) (uint32, bool) {
	v, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid " + name})
		return 0, false
	}
	return uint32(v), true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
