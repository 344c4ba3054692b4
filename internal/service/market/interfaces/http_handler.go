package interfaces

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"agrinexus/internal/pkg/apperr"
	"agrinexus/internal/pkg/auth"
	"agrinexus/internal/service/market/application"
	"agrinexus/internal/service/market/domain"
)

// MarketHandler 封装了市场卡片与农产品挂牌的 HTTP 处理器
type MarketHandler struct {
	service *application.MarketService
	// maxUpload 读取请求体的硬上限，业务上限由 service 按配置校验
	maxUpload int64
}

// NewMarketHandler 创建一个新的 HTTP 处理器实例
func NewMarketHandler(service *application.MarketService, maxUpload int64) *MarketHandler {
	return &MarketHandler{service: service, maxUpload: maxUpload}
}

// RegisterRoutes 注册所有路由，调用方负责挂载认证中间件
func (h *MarketHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/market-cards", func(r chi.Router) {
		r.Post("/", h.handleCreateCard)
		r.Get("/", h.handleListCards)
		r.Get("/{id}", h.handleGetCard)
		r.Patch("/{id}", h.handleUpdateCard)
		r.Delete("/{id}", h.handleDeleteCard)
		r.Post("/{id}/image", h.handleUploadCardImage)
	})
	r.Route("/api/v1/produce-listings", func(r chi.Router) {
		r.Post("/", h.handleCreateListing)
		r.Get("/", h.handleListListings)
		r.Get("/{id}", h.handleGetListing)
		r.Patch("/{id}", h.handleUpdateListing)
		r.Delete("/{id}", h.handleDeleteListing)
		r.Post("/{id}/sold", h.handleMarkSold)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validationf("invalid request body: %v", err)
	}
	return nil
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, err := auth.PrincipalFrom(r.Context())
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return auth.Principal{}, false
	}
	return p, true
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validationf("%s must be an integer", name)
	}
	return n, nil
}

func paging(r *http.Request) (int, int, error) {
	limit, err := intParam(r, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intParam(r, "offset")
	return limit, offset, err
}

func (h *MarketHandler) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req application.CreateCardRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	resp, err := h.service.CreateCard(r.Context(), p, &req)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *MarketHandler) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(r)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	query := application.CardListQuery{
		CardQuery: domain.CardQuery{
			OwnerID:    q.Get("owner_id"),
			CropName:   q.Get("crop"),
			CardType:   domain.CardType(q.Get("type")),
			PriceType:  domain.PriceType(q.Get("price_type")),
			Location:   q.Get("location"),
			ActiveOnly: q.Get("active") != "false",
			Limit:      limit,
			Offset:     offset,
		},
		Filter: q.Get("filter"),
	}
	cards, err := h.service.ListCards(r.Context(), query)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cards})
}

func (h *MarketHandler) handleGetCard(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MarketHandler) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req application.UpdateCardRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	resp, err := h.service.UpdateCard(r.Context(), p, chi.URLParam(r, "id"), &req)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MarketHandler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCard(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadCardImage 请求体是原始图片字节，类型取自 Content-Type
func (h *MarketHandler) handleUploadCardImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	// 多读一个字节，让超限的请求能被 service 识别为 image_too_large
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxUpload+1))
	if err != nil {
		apperr.WriteJSON(w, r, apperr.Validationf("read image: %v", err))
		return
	}
	resp, err := h.service.UploadCardImage(r.Context(), p, chi.URLParam(r, "id"), r.Header.Get("Content-Type"), body)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MarketHandler) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req application.CreateListingRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	resp, err := h.service.CreateListing(r.Context(), p, &req)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *MarketHandler) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := paging(r)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	query := application.ListingListQuery{
		ListingQuery: domain.ListingQuery{
			FarmerID:  q.Get("farmer_id"),
			CropName:  q.Get("crop"),
			PriceType: domain.PriceType(q.Get("price_type")),
			Location:  q.Get("location"),
			Status:    domain.ListingStatus(q.Get("status")),
			Limit:     limit,
			Offset:    offset,
		},
		Filter: q.Get("filter"),
	}
	listings, err := h.service.ListListings(r.Context(), query)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": listings})
}

func (h *MarketHandler) handleGetListing(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.GetListing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MarketHandler) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req application.UpdateListingRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	resp, err := h.service.UpdateListing(r.Context(), p, chi.URLParam(r, "id"), &req)
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MarketHandler) handleDeleteListing(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteListing(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MarketHandler) handleMarkSold(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	resp, err := h.service.MarkListingSold(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		apperr.WriteJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
