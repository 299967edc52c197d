package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthProvider values accepted on a user record.
const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// User is an account plus its generation-quota state. PasswordHash is empty
// for federated accounts. LastGenerationDate is nil until the quota ledger
// evaluates the user for the first time.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Name         string         `gorm:"size:100" json:"name,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	AuthProvider string         `gorm:"size:20;not null;default:'local'" json:"authProvider"`

	DailyGenerationCount int        `gorm:"not null;default:0;check:daily_generation_count >= 0" json:"dailyGenerationCount"`
	RewardedGenerations  int        `gorm:"not null;default:0;check:rewarded_generations >= 0" json:"rewardedGenerations"`
	LastGenerationDate   *time.Time `json:"lastGenerationDate"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
