package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
)

// Service manages card administration. Balance mutations are not part
// of this contract; those go through the ledger store.
type Service interface {
	Create(ctx context.Context, req CreateCardRequest) (*Card, error)
	GetByID(ctx context.Context, tenantID int64, cardID snowflake.ID) (*Card, error)
	GetByNumber(ctx context.Context, tenantID int64, cardNumber string) (*Card, error)
	GetByCustomer(ctx context.Context, tenantID, customerID int64) (*Card, error)
	List(ctx context.Context, req ListCardsRequest) (ListCardsResponse, error)
	LinkReferrer(ctx context.Context, tenantID int64, cardID snowflake.ID, referrerCardNumber string) (*Card, error)
	ListReferrals(ctx context.Context, tenantID int64, cardID snowflake.ID) ([]*Card, error)
	Deactivate(ctx context.Context, tenantID int64, cardID snowflake.ID) (*Card, error)
}

var (
	ErrCardNotFound     = errors.New("card_not_found")
	ErrReferrerNotFound = errors.New("referrer_card_not_found")
	ErrCardInactive     = errors.New("card_inactive")
	ErrCustomerHasCard  = errors.New("customer_already_has_card")
	ErrAlreadyLinked    = errors.New("referrer_already_linked")
	ErrSelfReferral     = errors.New("self_referral")
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidName      = errors.New("invalid_customer_name")
)

// CreateCardRequest issues a new card, optionally linked to a referrer
// at creation time.
type CreateCardRequest struct {
	TenantID           int64
	CustomerID         int64
	CustomerName       string
	CustomerPhone      string
	CustomerEmail      string
	ReferrerCardNumber string
}

type ListCardsRequest struct {
	TenantID  int64
	Search    string
	PageToken string
	PageSize  int32
}

type ListCardsResponse struct {
	Cards    []Card              `json:"cards"`
	PageInfo pagination.PageInfo `json:"page_info"`
}
