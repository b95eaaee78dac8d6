package postgres

import "time"

// HoldingRecord is one symbol in a user's portfolio.
type HoldingRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	UserID string `gorm:"type:varchar(64);not null;index:idx_holding_user_symbol,unique"`
	Symbol string `gorm:"type:varchar(32);not null;index:idx_holding_user_symbol,unique"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (HoldingRecord) TableName() string {
	return "portfolio_holding"
}
