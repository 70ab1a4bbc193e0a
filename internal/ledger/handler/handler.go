package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/httpx"
	"github.com/fekuna/omnipos-inventory-service/internal/ledger"
	"github.com/fekuna/omnipos-inventory-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	uc     ledger.UseCase
	logger logger.ZapLogger
}

func NewHandler(uc ledger.UseCase, log logger.ZapLogger) *Handler {
	return &Handler{uc: uc, logger: log}
}

func (h *Handler) RegisterRoutes(g *gin.RouterGroup) {
	stock := g.Group("/stock")
	{
		stock.POST("", h.Create)
		stock.GET("/aggregate", h.AggregatedStock)
		stock.GET("/availability", h.CheckAvailability)
		stock.GET("/low", h.LowStock)
		stock.GET("/statistics", h.Statistics)
		stock.GET("/batch/:batchId", h.GetByBatch)
		stock.POST("/consume", h.Consume)
		stock.POST("/reserve", h.Reserve)
		stock.POST("/release", h.Release)
		stock.POST("/force-release", h.ForceRelease)
		stock.GET("/reserved/:orderId", h.ReservedByOrder)
		stock.GET("/:id", h.GetByID)
		stock.GET("/:id/changes", h.Changes)
		stock.POST("/:id/quantity", h.ChangeQuantity)
		stock.POST("/:id/shrinkage", h.Shrinkage)
		stock.POST("/:id/deplete", h.Deplete)
		stock.POST("/:id/transfer", h.Transfer)
	}
}

func locationFromQuery(c *gin.Context) dto.Location {
	return dto.Location{
		Type: model.LocationType(c.Query("location_type")),
		ID:   c.Query("location_id"),
	}
}

type locationBody struct {
	Type model.LocationType `json:"type" binding:"required"`
	ID   string             `json:"id" binding:"required"`
}

type createRequest struct {
	BatchID                 string       `json:"batch_id" binding:"required"`
	ProductID               string       `json:"product_id" binding:"required"`
	Location                locationBody `json:"location" binding:"required"`
	LocationName            string       `json:"location_name"`
	Quantity                float64      `json:"quantity" binding:"required,gt=0"`
	EffectiveExpirationDate time.Time    `json:"effective_expiration_date" binding:"required"`
	FreshnessRemaining      float64      `json:"freshness_remaining"`
	DegradationCoefficient  float64      `json:"degradation_coefficient"`
	ArrivedAt               time.Time    `json:"arrived_at"`
	PurchasePrice           *float64     `json:"purchase_price"`
	ReferenceID             string       `json:"reference_id"`
	ReferenceType           string       `json:"reference_type"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	bl, err := h.uc.Create(ctx, &dto.CreateBatchLocationInput{
		BatchID:                 req.BatchID,
		SellerID:                auth.GetSellerID(ctx),
		ProductID:               req.ProductID,
		Location:                dto.Location{Type: req.Location.Type, ID: req.Location.ID},
		LocationName:            req.LocationName,
		Quantity:                req.Quantity,
		EffectiveExpirationDate: req.EffectiveExpirationDate,
		FreshnessRemaining:      req.FreshnessRemaining,
		DegradationCoefficient:  req.DegradationCoefficient,
		ArrivedAt:               req.ArrivedAt,
		PurchasePrice:           req.PurchasePrice,
		Reason:                  model.ReasonReceiving,
		ReferenceID:             req.ReferenceID,
		ReferenceType:           req.ReferenceType,
		ChangedBy:               auth.GetUserID(ctx),
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bl)
}

func (h *Handler) GetByID(c *gin.Context) {
	bl, err := h.uc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bl)
}

func (h *Handler) GetByBatch(c *gin.Context) {
	rows, err := h.uc.GetByBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_locations": rows})
}

type changeQuantityRequest struct {
	Delta         float64            `json:"delta" binding:"required"`
	Reason        model.ChangeReason `json:"reason" binding:"required"`
	ReferenceID   string             `json:"reference_id"`
	ReferenceType string             `json:"reference_type"`
	Comment       string             `json:"comment"`
}

func (h *Handler) ChangeQuantity(c *gin.Context) {
	var req changeQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	bl, err := h.uc.ChangeQuantity(ctx, &dto.ChangeQuantityInput{
		ID:            c.Param("id"),
		Delta:         req.Delta,
		Reason:        req.Reason,
		ChangedBy:     auth.GetUserID(ctx),
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
		Comment:       req.Comment,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bl)
}

type consumeRequest struct {
	ProductID        string             `json:"product_id" binding:"required"`
	Location         locationBody       `json:"location" binding:"required"`
	Quantity         float64            `json:"quantity" binding:"required,gt=0"`
	Reason           model.ChangeReason `json:"reason"`
	UseAvailableOnly bool               `json:"use_available_only"`
	ReferenceID      string             `json:"reference_id"`
	ReferenceType    string             `json:"reference_type"`
}

func (h *Handler) Consume(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = model.ReasonSale
	}

	ctx := c.Request.Context()
	result, err := h.uc.ConsumeByFefo(ctx, &dto.ConsumeInput{
		SellerID:         auth.GetSellerID(ctx),
		ProductID:        req.ProductID,
		Location:         dto.Location{Type: req.Location.Type, ID: req.Location.ID},
		Quantity:         req.Quantity,
		Reason:           reason,
		UseAvailableOnly: req.UseAvailableOnly,
		ReferenceID:      req.ReferenceID,
		ReferenceType:    req.ReferenceType,
		ChangedBy:        auth.GetUserID(ctx),
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reserveRequest struct {
	ProductID string       `json:"product_id" binding:"required"`
	Location  locationBody `json:"location" binding:"required"`
	Quantity  float64      `json:"quantity" binding:"required,gt=0"`
	OrderID   string       `json:"order_id" binding:"required"`
}

func (h *Handler) Reserve(c *gin.Context) {
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.ReserveByFefo(ctx, &dto.ReserveInput{
		SellerID:  auth.GetSellerID(ctx),
		ProductID: req.ProductID,
		Location:  dto.Location{Type: req.Location.Type, ID: req.Location.ID},
		Quantity:  req.Quantity,
		OrderID:   req.OrderID,
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type releaseRequest struct {
	OrderID          string   `json:"order_id" binding:"required"`
	BatchLocationIDs []string `json:"batch_location_ids"`
	Reason           string   `json:"reason"`
}

func (h *Handler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	result, err := h.uc.ReleaseReservation(c.Request.Context(), req.OrderID, req.BatchLocationIDs, req.Reason)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type forceReleaseRequest struct {
	ProductID string       `json:"product_id" binding:"required"`
	Location  locationBody `json:"location" binding:"required"`
	Quantity  float64      `json:"quantity" binding:"required,gt=0"`
	Reason    string       `json:"reason"`
}

func (h *Handler) ForceRelease(c *gin.Context) {
	var req forceReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.ForceReleaseReservation(ctx, &dto.ForceReleaseInput{
		SellerID:  auth.GetSellerID(ctx),
		ProductID: req.ProductID,
		Location:  dto.Location{Type: req.Location.Type, ID: req.Location.ID},
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		ChangedBy: auth.GetUserID(ctx),
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ReservedByOrder(c *gin.Context) {
	rows, err := h.uc.GetReservedByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reserved": rows})
}

type transferRequest struct {
	TargetLocation            locationBody `json:"target_location" binding:"required"`
	TargetLocationName        string       `json:"target_location_name"`
	Quantity                  float64      `json:"quantity" binding:"required,gt=0"`
	NewDegradationCoefficient *float64     `json:"new_degradation_coefficient"`
	ReferenceID               string       `json:"reference_id"`
}

func (h *Handler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.TransferToLocation(ctx, &dto.TransferInput{
		SourceID:                  c.Param("id"),
		TargetLocation:            dto.Location{Type: req.TargetLocation.Type, ID: req.TargetLocation.ID},
		TargetLocationName:        req.TargetLocationName,
		Quantity:                  req.Quantity,
		NewDegradationCoefficient: req.NewDegradationCoefficient,
		ReferenceID:               req.ReferenceID,
		ChangedBy:                 auth.GetUserID(ctx),
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type shrinkageRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Comment  string  `json:"comment"`
}

func (h *Handler) Shrinkage(c *gin.Context) {
	var req shrinkageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	bl, err := h.uc.ApplyShrinkage(ctx, &dto.ShrinkageInput{
		ID:        c.Param("id"),
		Quantity:  req.Quantity,
		Comment:   req.Comment,
		ChangedBy: auth.GetUserID(ctx),
	})
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bl)
}

func (h *Handler) Deplete(c *gin.Context) {
	ctx := c.Request.Context()
	bl, err := h.uc.MarkDepleted(ctx, c.Param("id"), auth.GetUserID(ctx))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bl)
}

func (h *Handler) AggregatedStock(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := h.uc.GetAggregatedStock(ctx, auth.GetSellerID(ctx), locationFromQuery(c))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": rows})
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	quantity, err := strconv.ParseFloat(c.Query("quantity"), 64)
	if err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.uc.CheckAvailability(ctx, auth.GetSellerID(ctx), c.Query("product_id"), locationFromQuery(c), quantity)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) LowStock(c *gin.Context) {
	threshold, err := strconv.ParseFloat(c.DefaultQuery("threshold", "5"), 64)
	if err != nil {
		httpx.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	rows, err := h.uc.GetLowStock(ctx, auth.GetSellerID(ctx), locationFromQuery(c), threshold)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": rows})
}

func (h *Handler) Statistics(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.uc.GetLocationStatistics(ctx, auth.GetSellerID(ctx), locationFromQuery(c))
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Changes(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	changes, total, err := h.uc.ListChanges(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		httpx.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes, "total": total})
}
