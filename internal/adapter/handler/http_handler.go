package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rl1809/batch-allocation/internal/core/domain"
	"github.com/rl1809/batch-allocation/internal/port"
)

type HTTPHandler struct {
	bus    Bus
	view   port.AllocationsView
	logger *zap.Logger
}

type AddBatchHTTPRequest struct {
	Ref string  `json:"ref"`
	SKU string  `json:"sku"`
	Qty int     `json:"qty"`
	ETA *string `json:"eta"`
}

type AllocateHTTPRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type AllocateHTTPResponse struct {
	BatchRef string `json:"batchref"`
}

type DeallocateHTTPRequest struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
}

type ChangeQuantityHTTPRequest struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

type ErrorHTTPResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(bus Bus, view port.AllocationsView, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{bus: bus, view: view, logger: logger}
}

// Routes returns the mux serving every endpoint.
func (h *HTTPHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/add_batch", h.AddBatch)
	mux.HandleFunc("/allocate", h.Allocate)
	mux.HandleFunc("/deallocate", h.Deallocate)
	mux.HandleFunc("/change_quantity", h.ChangeQuantity)
	mux.HandleFunc("GET /allocations/{orderid}", h.Allocations)
	return mux
}

func (h *HTTPHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req AddBatchHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateBatch(req.Ref, req.SKU); err != nil {
		h.writeError(w, err)
		return
	}
	eta, err := parseETA(req.ETA)
	if err != nil {
		h.writeError(w, err)
		return
	}

	cmd := domain.CreateBatch{Ref: req.Ref, SKU: req.SKU, Qty: req.Qty, ETA: eta}
	if _, err := h.bus.Handle(r.Context(), cmd); err != nil {
		h.writeError(w, err)
		return
	}
	writeText(w, http.StatusCreated, "OK")
}

func (h *HTTPHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateLine(req.OrderID, req.SKU); err != nil {
		h.writeError(w, err)
		return
	}

	results, err := h.bus.Handle(r.Context(), domain.Allocate{OrderID: req.OrderID, SKU: req.SKU, Qty: req.Qty})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AllocateHTTPResponse{BatchRef: firstString(results)})
}

func (h *HTTPHandler) Deallocate(w http.ResponseWriter, r *http.Request) {
	var req DeallocateHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.bus.Handle(r.Context(), domain.Deallocate{OrderID: req.OrderID, SKU: req.SKU}); err != nil {
		h.writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (h *HTTPHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req ChangeQuantityHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.bus.Handle(r.Context(), domain.ChangeBatchQuantity{Ref: req.Ref, Qty: req.Qty}); err != nil {
		h.writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "OK")
}

func (h *HTTPHandler) Allocations(w http.ResponseWriter, r *http.Request) {
	views, err := h.view.Allocations(r.Context(), r.PathValue("orderid"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(views) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorHTTPResponse{Message: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode rejects anything but a POST with a JSON body.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Message: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, _ := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, ErrorHTTPResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
