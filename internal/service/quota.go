package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodia/backend/internal/models"
)

// ErrQuotaExhausted is returned when a user has neither free nor rewarded
// credits left. The caller must reject the generation request without
// invoking the synthesis pipeline.
var ErrQuotaExhausted = errors.New("no generation credit available")

// CreditTier identifies which pool a consumed credit came from.
type CreditTier string

const (
	TierFree     CreditTier = "free"
	TierRewarded CreditTier = "rewarded"
)

// QuotaService is the quota ledger: it keeps the free-tier counter aligned to
// calendar days and arbitrates credit consumption. Decrements are single
// conditional UPDATE statements so concurrent requests from one account
// cannot both spend the last credit.
type QuotaService struct {
	db             *gorm.DB
	dailyAllotment int
	now            func() time.Time
}

// NewQuotaService creates a quota ledger with the given daily free allotment.
func NewQuotaService(db *gorm.DB, dailyAllotment int) *QuotaService {
	return &QuotaService{
		db:             db,
		dailyAllotment: dailyAllotment,
		now:            time.Now,
	}
}

// QuotaStatus is the ledger state exposed to callers.
type QuotaStatus struct {
	DailyGenerationCount int        `json:"dailyGenerationCount"`
	RewardedGenerations  int        `json:"rewardedGenerations"`
	TotalAvailable       int        `json:"totalAvailable"`
	LastGenerationDate   *time.Time `json:"lastGenerationDate"`
}

// EvaluateAndReset aligns the user's free-tier counter with the current
// calendar day. First use initializes the record; a new calendar day restores
// the free allotment and leaves rewarded credits untouched; the same day is a
// no-op. Returns true when the record was mutated. It has no failure mode.
func (s *QuotaService) EvaluateAndReset(user *models.User, today time.Time) bool {
	if user.LastGenerationDate == nil {
		t := today
		user.LastGenerationDate = &t
		user.DailyGenerationCount = s.dailyAllotment
		user.RewardedGenerations = 0
		return true
	}

	last := *user.LastGenerationDate
	sameDay := last.Day() == today.Day() &&
		last.Month() == today.Month() &&
		last.Year() == today.Year()
	if sameDay {
		return false
	}

	t := today
	user.LastGenerationDate = &t
	user.DailyGenerationCount = s.dailyAllotment
	// Rewarded credits roll over across days.
	return true
}

// Refresh loads the user, applies the daily reset and persists it when it
// fired. Called before every credit check and quota-status query.
func (s *QuotaService) Refresh(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}

	if s.EvaluateAndReset(&user, s.now()) {
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"daily_generation_count": user.DailyGenerationCount,
				"rewarded_generations":   user.RewardedGenerations,
				"last_generation_date":   user.LastGenerationDate,
			}).Error
		if err != nil {
			return nil, err
		}
	}

	return &user, nil
}

// ConsumeCredit spends one generation credit, preferring the free tier so
// rewards roll over. Returns ErrQuotaExhausted when both pools are empty.
func (s *QuotaService) ConsumeCredit(ctx context.Context, userID uuid.UUID) (CreditTier, error) {
	if _, err := s.Refresh(ctx, userID); err != nil {
		return "", err
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND daily_generation_count > 0", userID).
		UpdateColumn("daily_generation_count", gorm.Expr("daily_generation_count - 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return TierFree, nil
	}

	res = s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND rewarded_generations > 0", userID).
		UpdateColumn("rewarded_generations", gorm.Expr("rewarded_generations - 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected > 0 {
		return TierRewarded, nil
	}

	return "", ErrQuotaExhausted
}

// RefundCredit returns a previously consumed credit to its tier. Used by the
// charge-on-success policy when the pipeline aborts after the decrement.
func (s *QuotaService) RefundCredit(ctx context.Context, userID uuid.UUID, tier CreditTier) error {
	column := "daily_generation_count"
	if tier == TierRewarded {
		column = "rewarded_generations"
	}
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// GrantReward adds one rewarded credit (ad-watch flow) and returns the
// updated counters.
func (s *QuotaService) GrantReward(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if _, err := s.Refresh(ctx, userID); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("rewarded_generations", gorm.Expr("rewarded_generations + 1")).Error
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Status reports the ledger state after applying the daily reset.
func (s *QuotaService) Status(ctx context.Context, userID uuid.UUID) (*QuotaStatus, error) {
	user, err := s.Refresh(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &QuotaStatus{
		DailyGenerationCount: user.DailyGenerationCount,
		RewardedGenerations:  user.RewardedGenerations,
		TotalAvailable:       user.DailyGenerationCount + user.RewardedGenerations,
		LastGenerationDate:   user.LastGenerationDate,
	}, nil
}
