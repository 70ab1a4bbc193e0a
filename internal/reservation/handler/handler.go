package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/httpx"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation"
	"github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	uc     reservation.UseCase
	logger logger.ZapLogger
}

func NewHandler(uc reservation.UseCase, log logger.ZapLogger) *Handler {
	return &Handler{uc: uc, logger: log}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	reservations := g.Group("/reservations")
	{
		reservations.POST("", h.Create)
		reservations.GET("", h.ListBySeller)
		reservations.GET("/statistics", h.Statistics)
		reservations.GET("/shop/:shopId", h.ListByShop)
		reservations.GET("/order/:orderId", h.GetByOrder)
		reservations.POST("/order/:orderId/cancel", h.CancelByOrder)
		reservations.GET("/:id", h.GetByID)
		reservations.POST("/:id/items", h.AddItem)
		reservations.PUT("/:id/items/:itemId", h.UpdateItemQuantity)
		reservations.DELETE("/:id/items/:itemId", h.RemoveItem)
		reservations.POST("/:id/confirm", h.Confirm)
		reservations.POST("/:id/partial-confirm", h.PartiallyConfirm)
		reservations.POST("/:id/cancel", h.Cancel)
		reservations.POST("/:id/extend", h.Extend)
	}
}

type createRequest struct {
	OrderID    string                `json:"order_id" binding:"required"`
	CustomerID string                `json:"customer_id"`
	ShopID     string                `json:"shop_id" binding:"required"`
	ShopName   string                `json:"shop_name"`
	Type       model.ReservationType `json:"type"`
	TTLMinutes int                   `json:"ttl_minutes"`
	Items      []dto.ItemInput       `json:"items" binding:"required,min=1"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	res, err := h.uc.Create(ctx, &dto.CreateInput{
		SellerID:   auth.GetSellerID(ctx),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		ShopID:     req.ShopID,
		ShopName:   req.ShopName,
		Type:       req.Type,
		TTLMinutes: req.TTLMinutes,
		Items:      req.Items,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetByID(c *gin.Context) {
	res, err := h.uc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetByOrder(c *gin.Context) {
	res, err := h.uc.GetByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func filtersFromQuery(c *gin.Context) *dto.ReservationFilters {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return &dto.ReservationFilters{
		Status:   model.ReservationStatus(c.Query("status")),
		Type:     model.ReservationType(c.Query("type")),
		Page:     page,
		PageSize: pageSize,
	}
}

func (h *Handler) ListBySeller(c *gin.Context) {
	ctx := c.Request.Context()
	rows, total, err := h.uc.GetBySeller(ctx, auth.GetSellerID(ctx), filtersFromQuery(c))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": rows, "total": total})
}

func (h *Handler) ListByShop(c *gin.Context) {
	rows, total, err := h.uc.GetByShop(c.Request.Context(), c.Param("shopId"), filtersFromQuery(c))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": rows, "total": total})
}

func (h *Handler) AddItem(c *gin.Context) {
	var req dto.ItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	res, err := h.uc.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type updateItemRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

func (h *Handler) UpdateItemQuantity(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	res, err := h.uc.UpdateItemQuantity(c.Request.Context(), c.Param("id"), c.Param("itemId"), req.Quantity)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	res, err := h.uc.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type confirmRequest struct {
	ConfirmedQuantities map[string]float64 `json:"confirmed_quantities"`
}

func (h *Handler) Confirm(c *gin.Context) {
	var req confirmRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err)
			return
		}
	}

	res, err := h.uc.Confirm(c.Request.Context(), c.Param("id"), req.ConfirmedQuantities)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type partialConfirmRequest struct {
	Items []dto.PartialConfirmItem `json:"items" binding:"required,min=1"`
}

func (h *Handler) PartiallyConfirm(c *gin.Context) {
	var req partialConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	res, err := h.uc.PartiallyConfirm(c.Request.Context(), c.Param("id"), req.Items)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type cancelRequest struct {
	Reason  model.CancelReason `json:"reason"`
	Comment string             `json:"comment"`
}

func (h *Handler) Cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = model.CancelManual
	}

	res, err := h.uc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, req.Comment)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CancelByOrder(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = model.CancelOrderCancelled
	}

	res, err := h.uc.CancelByOrder(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type extendRequest struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,gt=0"`
}

func (h *Handler) Extend(c *gin.Context) {
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	res, err := h.uc.Extend(c.Request.Context(), c.Param("id"), time.Duration(req.AdditionalMinutes)*time.Minute)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Statistics(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.uc.GetStatistics(ctx, auth.GetSellerID(ctx))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
