package models

import "time"

// FoodRecord is the off-chain half of a traceability record. The contract
// holds only the metadata hash; the metadata itself lives here.
type FoodRecord struct {
	ID                        uint      `gorm:"primaryKey"`
	ProductID                 string    `gorm:"size:255;uniqueIndex;not null"`
	MetadataJSON              string    `gorm:"type:text;not null"` // compact, key order as submitted
	OnchainMetadataHash       string    `gorm:"size:66;index;not null"`
	BlockchainTransactionHash string    `gorm:"size:66;not null"`
	CreatedAt                 time.Time `gorm:"index"`
	UpdatedAt                 time.Time
}

func (FoodRecord) TableName() string { return "traceability_data" }
