package postgres

import (
	"context"

	"gorm.io/gorm/clause"
)

// AddHolding inserts a holding. Adding a symbol the user already holds is a
// no-op; created reports whether a row was written.
func (p *Client) AddHolding(ctx context.Context, record *HoldingRecord) (created bool, err error) {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "symbol"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListHoldings returns a user's holdings, oldest first.
func (p *Client) ListHoldings(ctx context.Context, userID string) ([]HoldingRecord, error) {
	var records []HoldingRecord
	err := p.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteHolding removes symbol from the user's holdings and reports whether
// anything was deleted.
func (p *Client) DeleteHolding(ctx context.Context, userID, symbol string) (bool, error) {
	tx := p.DB.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&HoldingRecord{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
