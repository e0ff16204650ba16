package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/rxbuddy/loyalty/internal/observability/logger"
	"github.com/rxbuddy/loyalty/internal/tenantcontext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantAPIKey authenticates a caller and binds it to one tenant. Only
// the SHA-256 of the key is stored; the plaintext exists once, at
// creation.
type TenantAPIKey struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID int64        `gorm:"not null;index" json:"tenant_id"`
	Name     string       `gorm:"type:text" json:"name"`
	KeyHash  string       `gorm:"type:text;not null;uniqueIndex:ux_tenant_api_keys_hash" json:"-"`
	IsActive bool         `gorm:"not null;default:true" json:"is_active"`

	CreatedAt  time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// TableName sets the database table name.
func (TenantAPIKey) TableName() string { return "tenant_api_keys" }

// HashAPIKey derives the stored digest for a plaintext key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

const apiKeyHeader = "X-API-Key"

// APIKeyAuth resolves the tenant from the request's API key and stamps
// it into both the gin and request contexts. Requests without a valid
// key never reach a handler.
func APIKeyAuth(db *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("server.auth")
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": APIError{
				Code:    "missing_api_key",
				Message: "missing api key",
			}})
			return
		}

		var record TenantAPIKey
		err := db.WithContext(c.Request.Context()).
			Where("key_hash = ? AND is_active = ?", HashAPIKey(key), true).
			First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn("rejected api key", zap.String("api_key", logger.MaskAPIKey(key)))
			} else {
				log.Error("api key lookup failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": APIError{
				Code:    "invalid_api_key",
				Message: "invalid api key",
			}})
			return
		}

		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).Model(&TenantAPIKey{}).
			Where("id = ?", record.ID).
			Update("last_used_at", now).Error; err != nil {
			log.Warn("touch api key", zap.Int64("key_id", int64(record.ID)), zap.Error(err))
		}

		ctx := tenantcontext.WithTenantID(c.Request.Context(), record.TenantID)
		ctx = tenantcontext.WithActor(ctx, "api_key", record.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Set("tenant_id", record.TenantID)
		c.Next()
	}
}

// performedBy names the authenticated actor for ledger attribution,
// in the same "type:id" form the audit recorder uses.
func performedBy(c *gin.Context) string {
	actorType, actorID := tenantcontext.ActorFromContext(c.Request.Context())
	if actorType == "" {
		return actorID
	}
	if actorID == "" {
		return actorType
	}
	return actorType + ":" + actorID
}

// tenantID reads the tenant resolved by APIKeyAuth.
func tenantID(c *gin.Context) int64 {
	if id, ok := tenantcontext.TenantIDFromContext(c.Request.Context()); ok {
		return id
	}
	if value, ok := c.Get("tenant_id"); ok {
		if id, ok := value.(int64); ok {
			return id
		}
	}
	return 0
}
