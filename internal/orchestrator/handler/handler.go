package handler

import (
	"net/http"
	"strconv"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/httpx"
	ledgerdto "github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator"
	"github.com/fekuna/omnipos-inventory-service/internal/orchestrator/dto"
	resdto "github.com/fekuna/omnipos-inventory-service/internal/reservation/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	uc     orchestrator.UseCase
	logger logger.ZapLogger
}

func NewHandler(uc orchestrator.UseCase, log logger.ZapLogger) *Handler {
	return &Handler{uc: uc, logger: log}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	orders := g.Group("/orders")
	{
		orders.POST("/reserve", h.ReserveForOrder)
		orders.POST("/:orderId/release", h.ReleaseReservation)
		orders.POST("/:orderId/consume", h.ConsumeReservation)
	}

	offline := g.Group("/offline-sales")
	{
		offline.POST("/conflicts", h.CheckConflict)
		offline.POST("", h.ProcessSale)
	}

	locations := g.Group("/locations")
	{
		locations.GET("/stock", h.LocationStock)
		locations.GET("/stock/:productId", h.ProductStock)
	}
}

type reserveForOrderRequest struct {
	OrderID    string                  `json:"order_id" binding:"required"`
	CustomerID string                  `json:"customer_id"`
	ShopID     string                  `json:"shop_id" binding:"required"`
	ShopName   string                  `json:"shop_name"`
	Type       model.ReservationType   `json:"type"`
	TTLMinutes int                     `json:"ttl_minutes"`
	Products   []resdto.ProductRequest `json:"products" binding:"required,min=1"`
}

func (h *Handler) ReserveForOrder(c *gin.Context) {
	var req reserveForOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.ReserveForOrder(ctx, &dto.ReserveForOrderInput{
		SellerID:   auth.GetSellerID(ctx),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		ShopID:     req.ShopID,
		ShopName:   req.ShopName,
		Type:       req.Type,
		TTLMinutes: req.TTLMinutes,
		Products:   req.Products,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type releaseRequest struct {
	Reason model.CancelReason `json:"reason"`
}

func (h *Handler) ReleaseReservation(c *gin.Context) {
	var req releaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = model.CancelOrderCancelled
	}

	res, err := h.uc.ReleaseOrderReservation(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type consumeRequest struct {
	ConfirmedQuantities map[string]float64 `json:"confirmed_quantities"`
}

func (h *Handler) ConsumeReservation(c *gin.Context) {
	var req consumeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.BadRequest(c, err)
			return
		}
	}

	res, err := h.uc.ConsumeReservation(c.Request.Context(), &dto.ConsumeReservationInput{
		OrderID:             c.Param("orderId"),
		ConfirmedQuantities: req.ConfirmedQuantities,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type conflictCheckRequest struct {
	ShopID   string                  `json:"shop_id" binding:"required"`
	Products []resdto.ProductRequest `json:"products" binding:"required,min=1"`
}

func (h *Handler) CheckConflict(c *gin.Context) {
	var req conflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.CheckOfflineSaleConflict(ctx, auth.GetSellerID(ctx), req.ShopID, req.Products)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type offlineSaleRequest struct {
	ShopID    string                  `json:"shop_id" binding:"required"`
	Products  []resdto.ProductRequest `json:"products" binding:"required,min=1"`
	Override  bool                    `json:"override"`
	ReceiptID string                  `json:"receipt_id"`
}

func (h *Handler) ProcessSale(c *gin.Context) {
	var req offlineSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.ProcessOfflineSale(ctx, &dto.OfflineSaleInput{
		SellerID:    auth.GetSellerID(ctx),
		ShopID:      req.ShopID,
		Products:    req.Products,
		Override:    req.Override,
		ReceiptID:   req.ReceiptID,
		ProcessedBy: auth.GetUserID(ctx),
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func locationFromQuery(c *gin.Context) ledgerdto.Location {
	return ledgerdto.Location{
		Type: model.LocationType(c.Query("location_type")),
		ID:   c.Query("location_id"),
	}
}

func (h *Handler) LocationStock(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	ctx := c.Request.Context()
	rows, total, err := h.uc.GetLocationStock(ctx, locationFromQuery(c), &ledgerdto.StockFilters{
		SellerID:  auth.GetSellerID(ctx),
		ProductID: c.Query("product_id"),
		Page:      page,
		PageSize:  pageSize,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_locations": rows, "total": total})
}

func (h *Handler) ProductStock(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := h.uc.GetProductStock(ctx, auth.GetSellerID(ctx), c.Param("productId"), locationFromQuery(c))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_locations": rows})
}
