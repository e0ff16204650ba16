package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/events"
	"github.com/rxbuddy/loyalty/internal/observability/logger"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"github.com/rxbuddy/loyalty/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cardNumberPrefix = "LOY"

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Events events.Publisher `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	events events.Publisher
	cards  repository.Repository[domain.Card]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("card.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		events: p.Events,
		cards:  repository.ProvideStore[domain.Card](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCardRequest) (*domain.Card, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.CustomerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, domain.ErrInvalidName
	}

	count, err := s.cards.Count(ctx, &domain.Card{TenantID: req.TenantID, CustomerID: req.CustomerID})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, domain.ErrCustomerHasCard
	}

	var referrerID *snowflake.ID
	if number := strings.TrimSpace(req.ReferrerCardNumber); number != "" {
		referrer, err := s.GetByNumber(ctx, req.TenantID, number)
		if err != nil {
			if errors.Is(err, domain.ErrCardNotFound) {
				return nil, domain.ErrReferrerNotFound
			}
			return nil, err
		}
		referrerID = &referrer.ID
	}

	cardNumber, err := s.generateCardNumber(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	card := &domain.Card{
		ID:                  s.genID.Generate(),
		TenantID:            req.TenantID,
		CardNumber:          cardNumber,
		CustomerID:          req.CustomerID,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerPhone:       strings.TrimSpace(req.CustomerPhone),
		CustomerEmail:       strings.ToLower(strings.TrimSpace(req.CustomerEmail)),
		ReferrerCardID:      referrerID,
		PointsBalance:       decimal.Zero,
		TotalEarned:         decimal.Zero,
		TotalRedeemed:       decimal.Zero,
		TotalReferralEarned: decimal.Zero,
		IsActive:            true,
		IssuedAt:            now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.cards.Create(ctx, card); err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, req.TenantID, events.EventCardCreated,
			events.EventCardCreated+":"+card.ID.String(),
			map[string]interface{}{
				"card_id":     card.ID.String(),
				"card_number": card.CardNumber,
				"customer_id": req.CustomerID,
			}); err != nil {
			s.log.Warn("publish card.created", zap.Error(err))
		}
	}

	s.log.Info("created loyalty card",
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("customer_id", req.CustomerID),
		zap.String("card_id", card.ID.String()),
		zap.String("card_number", logger.MaskCardNumber(card.CardNumber)),
	)
	return card, nil
}

func (s *Service) GetByID(ctx context.Context, tenantID int64, cardID snowflake.ID) (*domain.Card, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	card, err := s.cards.First(ctx, &domain.Card{ID: cardID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

func (s *Service) GetByNumber(ctx context.Context, tenantID int64, cardNumber string) (*domain.Card, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	cardNumber = strings.TrimSpace(cardNumber)
	if cardNumber == "" {
		return nil, domain.ErrCardNotFound
	}
	card, err := s.cards.First(ctx, &domain.Card{TenantID: tenantID, CardNumber: cardNumber})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

func (s *Service) GetByCustomer(ctx context.Context, tenantID, customerID int64) (*domain.Card, error) {
	if tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	card, err := s.cards.First(ctx, &domain.Card{TenantID: tenantID, CustomerID: customerID})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCardsRequest) (domain.ListCardsResponse, error) {
	if req.TenantID == 0 {
		return domain.ListCardsResponse{}, domain.ErrInvalidTenant
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	tx := s.db.WithContext(ctx).Where("tenant_id = ?", req.TenantID)
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + search + "%"
		tx = tx.Where(
			"card_number LIKE ? OR customer_name LIKE ? OR customer_phone LIKE ?",
			like, like, like,
		)
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(pageSize)}
	if token := strings.TrimSpace(page.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListCardsResponse{}, err
		}
		var at any = cursor.CreatedAt
		if parsed, perr := time.Parse(time.RFC3339Nano, cursor.CreatedAt); perr == nil {
			at = parsed
		}
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", at, at, cursor.ID)
	}

	var items []*domain.Card
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(int(pageSize) + 1).Find(&items).Error; err != nil {
		return domain.ListCardsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(card *domain.Card) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        card.ID.String(),
			CreatedAt: card.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	cards := make([]domain.Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, *item)
	}
	return domain.ListCardsResponse{Cards: cards, PageInfo: *pageInfo}, nil
}

// LinkReferrer sets the write-once referrer link. A card that already
// has a referrer, or that would point at itself, is rejected.
func (s *Service) LinkReferrer(ctx context.Context, tenantID int64, cardID snowflake.ID, referrerCardNumber string) (*domain.Card, error) {
	card, err := s.GetByID(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}
	if card.ReferrerCardID != nil {
		return nil, domain.ErrAlreadyLinked
	}

	referrer, err := s.GetByNumber(ctx, tenantID, referrerCardNumber)
	if err != nil {
		if errors.Is(err, domain.ErrCardNotFound) {
			return nil, domain.ErrReferrerNotFound
		}
		return nil, err
	}
	if referrer.ID == card.ID {
		return nil, domain.ErrSelfReferral
	}
	// Single-level chain: reject a link that would make the pair refer
	// to each other.
	if referrer.ReferrerCardID != nil && *referrer.ReferrerCardID == card.ID {
		return nil, domain.ErrSelfReferral
	}

	now := s.clock.Now()
	result := s.db.WithContext(ctx).Model(&domain.Card{}).
		Where("id = ? AND tenant_id = ? AND referrer_card_id IS NULL", card.ID, tenantID).
		Updates(map[string]any{
			"referrer_card_id": referrer.ID,
			"updated_at":       now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrAlreadyLinked
	}

	s.log.Info("linked referrer",
		zap.Int64("tenant_id", tenantID),
		zap.String("card_id", card.ID.String()),
		zap.String("referrer_card_id", referrer.ID.String()),
	)
	return s.GetByID(ctx, tenantID, cardID)
}

func (s *Service) ListReferrals(ctx context.Context, tenantID int64, cardID snowflake.ID) ([]*domain.Card, error) {
	if _, err := s.GetByID(ctx, tenantID, cardID); err != nil {
		return nil, err
	}
	return s.cards.Find(ctx, &domain.Card{TenantID: tenantID, ReferrerCardID: &cardID})
}

func (s *Service) Deactivate(ctx context.Context, tenantID int64, cardID snowflake.ID) (*domain.Card, error) {
	card, err := s.GetByID(ctx, tenantID, cardID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Model(&domain.Card{}).
		Where("id = ? AND tenant_id = ?", card.ID, tenantID).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now,
		}).Error; err != nil {
		return nil, err
	}

	s.log.Info("deactivated card",
		zap.Int64("tenant_id", tenantID),
		zap.String("card_id", card.ID.String()),
	)
	return s.GetByID(ctx, tenantID, cardID)
}

// generateCardNumber builds a tenant-scoped unique number in the form
// LOY-<tenant mod 1000>-<6 hex chars> and retries on the rare collision.
func (s *Service) generateCardNumber(ctx context.Context, tenantID int64) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		number := fmt.Sprintf("%s-%03d-%s", cardNumberPrefix, tenantID%1000, random)

		count, err := s.cards.Count(ctx, &domain.Card{TenantID: tenantID, CardNumber: number})
		if err != nil {
			return "", err
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", errors.New("card_number_exhausted")
}
