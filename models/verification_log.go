package models

import "time"

// Outcome values for VerificationLog.
const (
	OutcomeVerified = "verified"
	OutcomeMismatch = "mismatch"
)

// VerificationLog is one on-chain verification of a stored record.
type VerificationLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ProductID      string    `gorm:"size:255;index;not null" json:"product_id"`
	StoredHash     string    `gorm:"size:66" json:"stored_hash"`
	RecomputedHash string    `gorm:"size:66" json:"recomputed_hash"`
	OnchainHash    string    `gorm:"size:66" json:"onchain_hash"`
	HashRegistered bool      `json:"hash_registered"`
	Outcome        string    `gorm:"size:20" json:"outcome"` // "verified" | "mismatch"
	CheckedAt      time.Time `gorm:"index" json:"checked_at"`
}
