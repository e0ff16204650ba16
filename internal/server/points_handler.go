package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	pointsdomain "github.com/rxbuddy/loyalty/internal/points/domain"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type PointsHandler struct {
	points pointsdomain.Service
	cards  carddomain.Service
}

func NewPointsHandler(points pointsdomain.Service, cards carddomain.Service) *PointsHandler {
	return &PointsHandler{points: points, cards: cards}
}

// resolveCardID accepts either the internal id or the printed card
// number, which is what POS terminals actually have.
func (h *PointsHandler) resolveCardID(c *gin.Context, cardID, cardNumber string) (snowflake.ID, bool) {
	if cardID != "" {
		id, err := snowflake.ParseString(cardID)
		if err != nil {
			invalidRequestError(c, err)
			return 0, false
		}
		return id, true
	}
	card, err := h.cards.GetByNumber(c.Request.Context(), tenantID(c), cardNumber)
	if err != nil {
		AbortWithError(c, err)
		return 0, false
	}
	return card.ID, true
}

type earnItemRequest struct {
	CategoryID int64           `json:"category_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

// earnRequest carries the bill. Items may be empty; an earn that
// produces no points is still a valid, successful call.
type earnRequest struct {
	CardID     string            `json:"card_id"`
	CardNumber string            `json:"card_number"`
	BillID     string            `json:"bill_id" binding:"required"`
	BillAmount decimal.Decimal   `json:"bill_amount" binding:"required"`
	Items      []earnItemRequest `json:"items"`
}

// Earn godoc
// @Summary Award points for a bill
// @Tags points
// @Accept json
// @Produce json
// @Param request body earnRequest true "bill"
// @Success 200 {object} pointsdomain.EarnResult
// @Router /v1/points/earn [post]
func (h *PointsHandler) Earn(c *gin.Context) {
	var req earnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}
	if req.CardID == "" && req.CardNumber == "" {
		invalidRequestError(c, nil)
		return
	}
	cardID, ok := h.resolveCardID(c, req.CardID, req.CardNumber)
	if !ok {
		return
	}

	items := make([]pointsdomain.EarnItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, pointsdomain.EarnItem{
			CategoryID: item.CategoryID,
			Amount:     item.Amount,
		})
	}

	result, err := h.points.Earn(c.Request.Context(), pointsdomain.EarnRequest{
		TenantID:    tenantID(c),
		CardID:      cardID,
		BillID:      req.BillID,
		BillAmount:  req.BillAmount,
		Items:       items,
		PerformedBy: performedBy(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

type redeemRequest struct {
	CardID     string          `json:"card_id"`
	CardNumber string          `json:"card_number"`
	BillID     string          `json:"bill_id" binding:"required"`
	BillAmount decimal.Decimal `json:"bill_amount" binding:"required"`
	Points     decimal.Decimal `json:"points" binding:"required"`
}

// Redeem godoc
// @Summary Redeem points against a bill
// @Tags points
// @Accept json
// @Produce json
// @Param request body redeemRequest true "redemption"
// @Success 200 {object} pointsdomain.RedeemResult
// @Router /v1/points/redeem [post]
func (h *PointsHandler) Redeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}
	if req.CardID == "" && req.CardNumber == "" {
		invalidRequestError(c, nil)
		return
	}
	cardID, ok := h.resolveCardID(c, req.CardID, req.CardNumber)
	if !ok {
		return
	}

	result, err := h.points.Redeem(c.Request.Context(), pointsdomain.RedeemRequest{
		TenantID:    tenantID(c),
		CardID:      cardID,
		BillID:      req.BillID,
		BillAmount:  req.BillAmount,
		Points:      req.Points,
		PerformedBy: performedBy(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Balance godoc
// @Summary Current balance and lifetime totals for a card
// @Tags points
// @Produce json
// @Param id path string true "card id"
// @Success 200 {object} pointsdomain.BalanceResult
// @Router /v1/cards/{id}/balance [get]
func (h *PointsHandler) Balance(c *gin.Context) {
	cardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}

	result, err := h.points.Balance(c.Request.Context(), tenantID(c), cardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

type transactionsQuery struct {
	EntryType string `form:"entry_type"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Transactions godoc
// @Summary Card ledger history, newest first
// @Tags points
// @Produce json
// @Param id path string true "card id"
// @Param entry_type query string false "EARNED, REDEEMED or REFERRAL_EARNED"
// @Param page_token query string false "cursor"
// @Param page_size query int false "page size"
// @Success 200 {object} ledgerdomain.ListEntriesResponse
// @Router /v1/cards/{id}/transactions [get]
func (h *PointsHandler) Transactions(c *gin.Context) {
	cardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}
	var query transactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidRequestError(c, err)
		return
	}

	resp, err := h.points.Transactions(c.Request.Context(), pointsdomain.TransactionsRequest{
		TenantID:  tenantID(c),
		CardID:    cardID,
		EntryType: ledgerdomain.EntryType(query.EntryType),
		Page: pagination.Pagination{
			PageToken: query.PageToken,
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
