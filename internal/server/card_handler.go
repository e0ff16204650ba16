package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/rxbuddy/loyalty/internal/audit"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
)

type CardHandler struct {
	cards carddomain.Service
	audit audit.Recorder
}

func NewCardHandler(cards carddomain.Service, recorder audit.Recorder) *CardHandler {
	return &CardHandler{cards: cards, audit: recorder}
}

type createCardRequest struct {
	CustomerID         int64  `json:"customer_id" binding:"required"`
	CustomerName       string `json:"customer_name" binding:"required"`
	CustomerPhone      string `json:"customer_phone"`
	CustomerEmail      string `json:"customer_email"`
	ReferrerCardNumber string `json:"referrer_card_number"`
}

// CreateCard godoc
// @Summary Issue a loyalty card
// @Tags cards
// @Accept json
// @Produce json
// @Param request body createCardRequest true "card"
// @Success 201 {object} carddomain.Card
// @Router /v1/cards [post]
func (h *CardHandler) CreateCard(c *gin.Context) {
	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}

	card, err := h.cards.Create(c.Request.Context(), carddomain.CreateCardRequest{
		TenantID:           tenantID(c),
		CustomerID:         req.CustomerID,
		CustomerName:       req.CustomerName,
		CustomerPhone:      req.CustomerPhone,
		CustomerEmail:      req.CustomerEmail,
		ReferrerCardNumber: req.ReferrerCardNumber,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     card.TenantID,
		Action:       "card.create",
		ResourceType: "loyalty_card",
		ResourceID:   card.ID.String(),
	})
	c.JSON(http.StatusCreated, gin.H{"data": card})
}

// GetCard godoc
// @Summary Fetch a card by id
// @Tags cards
// @Produce json
// @Param id path string true "card id"
// @Success 200 {object} carddomain.Card
// @Router /v1/cards/{id} [get]
func (h *CardHandler) GetCard(c *gin.Context) {
	cardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}

	card, err := h.cards.GetByID(c.Request.Context(), tenantID(c), cardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": card})
}

// GetCardByNumber godoc
// @Summary Fetch a card by its printed number
// @Tags cards
// @Produce json
// @Param number path string true "card number"
// @Success 200 {object} carddomain.Card
// @Router /v1/cards/number/{number} [get]
func (h *CardHandler) GetCardByNumber(c *gin.Context) {
	card, err := h.cards.GetByNumber(c.Request.Context(), tenantID(c), c.Param("number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": card})
}

type listCardsQuery struct {
	Search    string `form:"search"`
	PageToken string `form:"page_token"`
	PageSize  int32  `form:"page_size"`
}

// ListCards godoc
// @Summary List cards with optional search
// @Tags cards
// @Produce json
// @Param search query string false "match card number, name or phone"
// @Param page_token query string false "cursor"
// @Param page_size query int false "page size"
// @Success 200 {object} carddomain.ListCardsResponse
// @Router /v1/cards [get]
func (h *CardHandler) ListCards(c *gin.Context) {
	var query listCardsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		invalidRequestError(c, err)
		return
	}

	resp, err := h.cards.List(c.Request.Context(), carddomain.ListCardsRequest{
		TenantID:  tenantID(c),
		Search:    query.Search,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type linkReferrerRequest struct {
	ReferrerCardNumber string `json:"referrer_card_number" binding:"required"`
}

// LinkReferrer godoc
// @Summary Set a card's referrer (write-once)
// @Tags cards
// @Accept json
// @Produce json
// @Param id path string true "card id"
// @Param request body linkReferrerRequest true "referrer"
// @Success 200 {object} carddomain.Card
// @Router /v1/cards/{id}/referrer [post]
func (h *CardHandler) LinkReferrer(c *gin.Context) {
	cardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}
	var req linkReferrerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequestError(c, err)
		return
	}

	card, err := h.cards.LinkReferrer(c.Request.Context(), tenantID(c), cardID, req.ReferrerCardNumber)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     card.TenantID,
		Action:       "card.link_referrer",
		ResourceType: "loyalty_card",
		ResourceID:   card.ID.String(),
		Detail:       map[string]interface{}{"referrer_card_number": req.ReferrerCardNumber},
	})
	c.JSON(http.StatusOK, gin.H{"data": card})
}

// ListReferrals godoc
// @Summary List cards referred by this card
// @Tags cards
// @Produce json
// @Param id path string true "card id"
// @Success 200 {array} carddomain.Card
// @Router /v1/cards/{id}/referrals [get]
func (h *CardHandler) ListReferrals(c *gin.Context) {
	cardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}

	referrals, err := h.cards.ListReferrals(c.Request.Context(), tenantID(c), cardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": referrals})
}

// DeactivateCard godoc
// @Summary Deactivate a card
// @Tags cards
// @Produce json
// @Param id path string true "card id"
// @Success 200 {object} carddomain.Card
// @Router /v1/cards/{id} [delete]
func (h *CardHandler) DeactivateCard(c *gin.Context) {
	cardID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequestError(c, err)
		return
	}

	card, err := h.cards.Deactivate(c.Request.Context(), tenantID(c), cardID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	h.audit.Record(c.Request.Context(), audit.Entry{
		TenantID:     card.TenantID,
		Action:       "card.deactivate",
		ResourceType: "loyalty_card",
		ResourceID:   card.ID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"data": card})
}
