package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/rxbuddy/loyalty/internal/audit"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/shopspring/decimal"
)

type ConfigHandler struct {
	configs tenantconfigdomain.Service
	audit   audit.Recorder
}

func NewConfigHandler(configs tenantconfigdomain.Service, recorder audit.Recorder) *ConfigHandler {
	return &ConfigHandler{configs: configs, audit: recorder}
}

// GetConfig godoc
// @Summary Effective loyalty configuration for the tenant
// @Tags config
// @Produce json
// @Success 200 {object} tenantconfigdomain.TenantPointsConfig
// @Router /v1/config [get]
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	cfg, err := h.configs.Resolve(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

type updateConfigRequest struct {
	PointsToAmountRate    *decimal.Decimal `json:"points_to_amount_rate"`
	MaxRedemptionPercent  *decimal.Decimal `json:"max_redemption_percent"`
	MinPointsToRedeem     *int64           `json:"min_points_to_redeem"`
	ReferralPointsPercent *decimal.Decimal `json:"referral_points_percent"`
	ReferralEnabled       *bool            `json:"referral_enabled"`
}

// UpdateConfig godoc
// @Summary Update loyalty configuration (partial)
// @Tags config
// @Accept json
// @Produce json
// @Param request body updateConfigRequest true "fields to change"
// @Success 200 {object} tenantconfigdomain.TenantPointsConfig
// @Router /v1/config [put]
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	var req updateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}

	cfg, err := h.configs.Update(c.Request.Context(), tenantID(c), tenantconfigdomain.UpdateConfigRequest{
		PointsToAmountRate:    req.PointsToAmountRate,
		MaxRedemptionPercent:  req.MaxRedemptionPercent,
		MinPointsToRedeem:     req.MinPointsToRedeem,
		ReferralPointsPercent: req.ReferralPointsPercent,
		ReferralEnabled:       req.ReferralEnabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     cfg.TenantID,
		Action:       "config.update",
		ResourceType: "tenant_points_config",
		ResourceID:   strconv.FormatInt(cfg.TenantID, 10),
	})
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// EnableConfig godoc
// @Summary Enable the loyalty program
// @Tags config
// @Produce json
// @Success 200 {object} tenantconfigdomain.TenantPointsConfig
// @Router /v1/config/enable [post]
func (h *ConfigHandler) EnableConfig(c *gin.Context) {
	h.toggle(c, true)
}

// DisableConfig godoc
// @Summary Disable the loyalty program
// @Tags config
// @Produce json
// @Success 200 {object} tenantconfigdomain.TenantPointsConfig
// @Router /v1/config/disable [post]
func (h *ConfigHandler) DisableConfig(c *gin.Context) {
	h.toggle(c, false)
}

func (h *ConfigHandler) toggle(c *gin.Context, enabled bool) {
	var (
		cfg tenantconfigdomain.TenantPointsConfig
		err error
	)
	if enabled {
		cfg, err = h.configs.Enable(c.Request.Context(), tenantID(c))
	} else {
		cfg, err = h.configs.Disable(c.Request.Context(), tenantID(c))
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	action := "config.disable"
	if enabled {
		action = "config.enable"
	}
	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     cfg.TenantID,
		Action:       action,
		ResourceType: "tenant_points_config",
		ResourceID:   strconv.FormatInt(cfg.TenantID, 10),
	})
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// ListCategoryRates godoc
// @Summary Active category earning rates
// @Tags config
// @Produce json
// @Success 200 {array} tenantconfigdomain.CategoryRate
// @Router /v1/config/category-rates [get]
func (h *ConfigHandler) ListCategoryRates(c *gin.Context) {
	rates, err := h.configs.ListCategoryRates(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rates})
}

type saveCategoryRateRequest struct {
	CategoryID   int64           `json:"category_id" binding:"required"`
	CategoryName string          `json:"category_name"`
	Percentage   decimal.Decimal `json:"percentage" binding:"required"`
	IsActive     *bool           `json:"is_active"`
}

// SaveCategoryRate godoc
// @Summary Create or update a category earning rate
// @Tags config
// @Accept json
// @Produce json
// @Param request body saveCategoryRateRequest true "rate"
// @Success 200 {object} tenantconfigdomain.CategoryRate
// @Router /v1/config/category-rates [put]
func (h *ConfigHandler) SaveCategoryRate(c *gin.Context) {
	var req saveCategoryRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}

	rate, err := h.configs.SaveCategoryRate(c.Request.Context(), tenantID(c), tenantconfigdomain.SaveCategoryRateRequest{
		CategoryID:   req.CategoryID,
		CategoryName: req.CategoryName,
		Percentage:   req.Percentage,
		IsActive:     req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     rate.TenantID,
		Action:       "config.save_category_rate",
		ResourceType: "category_rate",
		ResourceID:   rate.ID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"data": rate})
}

// DeleteCategoryRate godoc
// @Summary Delete a category earning rate
// @Tags config
// @Param id path string true "rate id"
// @Success 204
// @Router /v1/config/category-rates/{id} [delete]
func (h *ConfigHandler) DeleteCategoryRate(c *gin.Context) {
	rateID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}

	if err := h.configs.DeleteCategoryRate(c.Request.Context(), tenantID(c), rateID); err != nil {
		AbortWithError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     tenantID(c),
		Action:       "config.delete_category_rate",
		ResourceType: "category_rate",
		ResourceID:   rateID.String(),
	})
	c.Status(http.StatusNoContent)
}

// ListCategoryDiscounts godoc
// @Summary Active category discounts (display only)
// @Tags config
// @Produce json
// @Success 200 {array} tenantconfigdomain.CategoryDiscount
// @Router /v1/config/category-discounts [get]
func (h *ConfigHandler) ListCategoryDiscounts(c *gin.Context) {
	discounts, err := h.configs.ListCategoryDiscounts(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": discounts})
}

type saveCategoryDiscountRequest struct {
	CategoryID   int64           `json:"category_id" binding:"required"`
	CategoryName string          `json:"category_name"`
	Percentage   decimal.Decimal `json:"percentage" binding:"required"`
	IsActive     *bool           `json:"is_active"`
}

// SaveCategoryDiscount godoc
// @Summary Create or update a category discount
// @Tags config
// @Accept json
// @Produce json
// @Param request body saveCategoryDiscountRequest true "discount"
// @Success 200 {object} tenantconfigdomain.CategoryDiscount
// @Router /v1/config/category-discounts [put]
func (h *ConfigHandler) SaveCategoryDiscount(c *gin.Context) {
	var req saveCategoryDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}

	discount, err := h.configs.SaveCategoryDiscount(c.Request.Context(), tenantID(c), tenantconfigdomain.SaveCategoryDiscountRequest{
		CategoryID:   req.CategoryID,
		CategoryName: req.CategoryName,
		Percentage:   req.Percentage,
		IsActive:     req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": discount})
}

// DeleteCategoryDiscount godoc
// @Summary Delete a category discount
// @Tags config
// @Param id path string true "discount id"
// @Success 204
// @Router /v1/config/category-discounts/{id} [delete]
func (h *ConfigHandler) DeleteCategoryDiscount(c *gin.Context) {
	discountID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}

	if err := h.configs.DeleteCategoryDiscount(c.Request.Context(), tenantID(c), discountID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type AuditHandler struct {
	audit audit.Recorder
}

func NewAuditHandler(recorder audit.Recorder) *AuditHandler {
	return &AuditHandler{audit: recorder}
}

// ListAuditLogs godoc
// @Summary Recent administrative actions
// @Tags audit
// @Produce json
// @Param limit query int false "max rows"
// @Success 200 {array} audit.Log
// @Router /v1/audit-logs [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.audit.List(c.Request.Context(), tenantID(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
