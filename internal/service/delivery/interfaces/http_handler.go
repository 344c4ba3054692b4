package interfaces

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/service/delivery/application"
	"agrinexus/internal/service/delivery/domain"
	"agrinexus/internal/service/delivery/port"
)

// HTTPHandler 封装了配送请求相关的 HTTP 处理器
type HTTPHandler struct {
	service *application.DeliveryService
}

// NewHTTPHandler 创建一个新的 HTTP 处理器实例
func NewHTTPHandler(service *application.DeliveryService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterRoutes 注册所有路由，调用方负责挂载认证中间件
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/delivery-requests", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/accept", h.transition(h.service.Accept))
		r.Post("/{id}/reject", h.transition(h.service.Reject))
		r.Post("/{id}/complete", h.transition(h.service.Complete))
		r.Post("/{id}/cancel", h.transition(h.service.Cancel))
		r.Get("/{id}/shipment", h.handleGetShipment)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	var in application.CreateRequestInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		apperr.WriteJSON(w, r, apperr.Validationf("invalid request body: %v", err))
		return
	}
	resp, err := h.service.CreateRequest(r.Context(), p, &in)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	status := domain.Status(r.URL.Query().Get("status"))

	var list []*application.RequestResponse
	switch port.Role(r.URL.Query().Get("role")) {
	case port.RoleBuyer, "":
		list, err = h.service.ListBuyerRequests(r.Context(), p, status)
	case port.RoleSeller:
		list, err = h.service.ListSellerRequests(r.Context(), p, status)
	default:
		err = apperr.Validation("role must be buyer or seller")
	}
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	resp, err := h.service.GetRequest(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type transitionFunc func(ctx context.Context, actor auth.Principal, id, note string) (*application.RequestResponse, error)

// transition 四个状态操作共用一个处理器，请求体可以为空
func (h *HTTPHandler) transition(do transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.PrincipalFrom(r.Context())
		if err != nil {
			apperr.WriteJSON(w, r, err)
			return
		}
		var in application.TransitionInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			apperr.WriteJSON(w, r, apperr.Validationf("invalid request body: %v", err))
			return
		}
		resp, err := do(r.Context(), p, chi.URLParam(r, "id"), in.Note)
		if err != nil {
			apperr.WriteJSON(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *HTTPHandler) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	p, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	resp, err := h.service.GetShipment(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
