package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	ledgerdomain "github.com/rxbuddy/loyalty/internal/ledger/domain"
	pointsdomain "github.com/rxbuddy/loyalty/internal/points/domain"
	tenantconfigdomain "github.com/rxbuddy/loyalty/internal/tenantconfig/domain"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
)

// APIError is the wire shape of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errStatus = map[error]int{
	carddomain.ErrCardNotFound:           http.StatusNotFound,
	carddomain.ErrReferrerNotFound:       http.StatusNotFound,
	ledgerdomain.ErrCardNotFound:         http.StatusNotFound,
	tenantconfigdomain.ErrRateNotFound:   http.StatusNotFound,
	tenantconfigdomain.ErrConfigNotFound: http.StatusNotFound,

	carddomain.ErrCustomerHasCard:   http.StatusConflict,
	carddomain.ErrAlreadyLinked:     http.StatusConflict,
	ledgerdomain.ErrBalanceConflict: http.StatusConflict,

	carddomain.ErrCardInactive:           http.StatusUnprocessableEntity,
	carddomain.ErrSelfReferral:           http.StatusUnprocessableEntity,
	pointsdomain.ErrConfigDisabled:       http.StatusUnprocessableEntity,
	pointsdomain.ErrBelowMinimum:         http.StatusUnprocessableEntity,
	pointsdomain.ErrExceedsMaxRedemption: http.StatusUnprocessableEntity,
	pointsdomain.ErrInsufficientBalance:  http.StatusUnprocessableEntity,

	carddomain.ErrInvalidTenant:            http.StatusBadRequest,
	carddomain.ErrInvalidCustomer:          http.StatusBadRequest,
	carddomain.ErrInvalidName:              http.StatusBadRequest,
	tenantconfigdomain.ErrInvalidTenant:    http.StatusBadRequest,
	tenantconfigdomain.ErrInvalidCategory:  http.StatusBadRequest,
	tenantconfigdomain.ErrInvalidPercent:   http.StatusBadRequest,
	tenantconfigdomain.ErrInvalidRate:      http.StatusBadRequest,
	tenantconfigdomain.ErrInvalidMinPoints: http.StatusBadRequest,
	pointsdomain.ErrInvalidBill:            http.StatusBadRequest,
	pointsdomain.ErrInvalidAmount:          http.StatusBadRequest,
	pointsdomain.ErrInvalidPoints:          http.StatusBadRequest,
	ledgerdomain.ErrInvalidDelta:           http.StatusBadRequest,
	pagination.ErrInvalidPageToken:         http.StatusBadRequest,
}

// AbortWithError maps a domain error onto an HTTP status. Unknown
// errors become opaque 500s; the handler chain logs the original.
func AbortWithError(c *gin.Context, err error) {
	for sentinel, status := range errStatus {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(status, gin.H{"error": APIError{
				Code:    sentinel.Error(),
				Message: sentinel.Error(),
			}})
			return
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": APIError{
		Code:    "internal_error",
		Message: "internal error",
	}})
}

func invalidRequestError(c *gin.Context, err error) {
	message := "invalid request"
	if err != nil {
		message = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": APIError{
		Code:    "invalid_request",
		Message: message,
	}})
}
