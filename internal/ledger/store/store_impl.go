package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	carddomain "github.com/rxbuddy/loyalty/internal/card/domain"
	"github.com/rxbuddy/loyalty/internal/clock"
	"github.com/rxbuddy/loyalty/internal/config"
	"github.com/rxbuddy/loyalty/internal/ledger/domain"
	"github.com/rxbuddy/loyalty/pkg/db/option"
	"github.com/rxbuddy/loyalty/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cardLockStripes bounds lock memory; collisions only cost extra
// serialization, never correctness.
const cardLockStripes = 128

type StoreParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config `optional:"true"`
}

type Store struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	timeout time.Duration

	locks [cardLockStripes]sync.Mutex
}

func NewStore(p StoreParam) domain.Store {
	return &Store{
		db:      p.DB,
		log:     p.Log.Named("ledger.store"),
		genID:   p.GenID,
		clock:   p.Clock,
		timeout: p.Cfg.StoreTimeout,
	}
}

// withTimeout bounds a store operation so a stuck connection surfaces
// as a context error instead of a hang.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) lockFor(cardID snowflake.ID) *sync.Mutex {
	return &s.locks[uint64(cardID)%cardLockStripes]
}

// ApplyDelta appends a ledger entry and moves the card balance in one
// transaction. Writes to the same card are serialized through a striped
// mutex so the read-modify-write below cannot interleave.
func (s *Store) ApplyDelta(ctx context.Context, req domain.ApplyDeltaRequest) (*domain.LedgerEntry, error) {
	if err := validateDelta(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	mu := s.lockFor(req.CardID)
	mu.Lock()
	defer mu.Unlock()

	now := s.clock.Now()
	entry := &domain.LedgerEntry{
		ID:             s.genID.Generate(),
		TenantID:       req.TenantID,
		CardID:         req.CardID,
		EntryType:      req.EntryType,
		Points:         req.Points,
		ReferenceType:  req.ReferenceType,
		BillID:         req.BillID,
		BillAmount:     req.BillAmount,
		ReferredCardID: req.ReferredCardID,
		Description:    req.Description,
		PerformedBy:    req.PerformedBy,
		Metadata:       req.Metadata,
		CreatedAt:      now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card carddomain.Card
		if err := tx.Where("id = ? AND tenant_id = ?", req.CardID, req.TenantID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCardNotFound
			}
			return err
		}

		newBalance := card.PointsBalance.Add(req.Points)
		if newBalance.IsNegative() {
			return domain.ErrBalanceConflict
		}

		updates := map[string]interface{}{
			"points_balance":      newBalance,
			"last_transaction_at": now,
			"updated_at":          now,
		}
		switch req.EntryType {
		case domain.EntryTypeEarned:
			updates["total_earned"] = card.TotalEarned.Add(req.Points)
		case domain.EntryTypeRedeemed:
			updates["total_redeemed"] = card.TotalRedeemed.Add(req.Points.Neg())
		case domain.EntryTypeReferralEarned:
			updates["total_referral_earned"] = card.TotalReferralEarned.Add(req.Points)
		}

		if err := tx.Model(&carddomain.Card{}).
			Where("id = ? AND tenant_id = ?", req.CardID, req.TenantID).
			Updates(updates).Error; err != nil {
			return err
		}

		entry.BalanceAfter = newBalance
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("applied ledger delta",
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("card_id", int64(req.CardID)),
		zap.String("entry_type", string(req.EntryType)),
		zap.String("points", req.Points.String()),
		zap.String("balance_after", entry.BalanceAfter.String()),
	)
	return entry, nil
}

func validateDelta(req domain.ApplyDeltaRequest) error {
	if req.TenantID == 0 || req.CardID == 0 {
		return domain.ErrInvalidDelta
	}
	switch req.EntryType {
	case domain.EntryTypeEarned, domain.EntryTypeReferralEarned:
		if !req.Points.IsPositive() {
			return domain.ErrInvalidDelta
		}
	case domain.EntryTypeRedeemed:
		if !req.Points.IsNegative() {
			return domain.ErrInvalidDelta
		}
	default:
		return domain.ErrInvalidDelta
	}
	return nil
}

// Balance returns the card with its current balance and lifetime totals.
func (s *Store) Balance(ctx context.Context, tenantID int64, cardID snowflake.ID) (*carddomain.Card, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var card carddomain.Card
	err := s.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", cardID, tenantID).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// ListEntries returns a card's history newest first with cursor paging.
func (s *Store) ListEntries(ctx context.Context, req domain.ListEntriesRequest) (*domain.ListEntriesResponse, error) {
	if req.TenantID == 0 || req.CardID == 0 {
		return nil, domain.ErrInvalidDelta
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	pageSize := req.Page.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	req.Page.PageSize = pageSize

	tx := s.db.WithContext(ctx).
		Where("tenant_id = ? AND card_id = ?", req.TenantID, req.CardID)
	if req.EntryType != "" {
		tx = tx.Where("entry_type = ?", req.EntryType)
	}
	tx = option.ApplyPagination(req.Page)(tx)
	tx = option.WithSortBy(option.QuerySortBy{Desc: true})(tx)

	var entries []*domain.LedgerEntry
	if err := tx.Find(&entries).Error; err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(entries, int32(pageSize), func(e *domain.LedgerEntry) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})
	if len(entries) > pageSize {
		entries = entries[:pageSize]
	}

	return &domain.ListEntriesResponse{Entries: entries, PageInfo: pageInfo}, nil
}
