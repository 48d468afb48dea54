package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"
	"github.com/ActorLancer/Food-Info-Trace/models"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const historyLimit = 50

// HashReader is the read side of the traceability contract.
type HashReader interface {
	FetchOnchainHash(ctx context.Context, productID string) (common.Hash, error)
	MetadataHashExists(ctx context.Context, metadataHash common.Hash) (bool, error)
}

type VerificationResult struct {
	ProductID      string    `json:"product_id"`
	StoredHash     string    `json:"stored_hash"`
	RecomputedHash string    `json:"recomputed_hash"`
	OnchainHash    string    `json:"onchain_hash"`
	HashRegistered bool      `json:"hash_registered"`
	MetadataIntact bool      `json:"metadata_intact"`
	OnchainMatch   bool      `json:"onchain_match"`
	Verified       bool      `json:"verified"`
	CheckedAt      time.Time `json:"checked_at"`
}

// VerificationService compares stored records with the contract.
type VerificationService struct {
	db    *gorm.DB
	chain HashReader
	bus   *EventBus
	log   *zap.Logger
}

// NewVerificationService accepts a nil chain; Verify then reports
// Unavailable.
func NewVerificationService(db *gorm.DB, chain HashReader, bus *EventBus, log *zap.Logger) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationService{db: db, chain: chain, bus: bus, log: log}
}

func (s *VerificationService) record(ctx context.Context, productID string) (*models.FoodRecord, error) {
	productID = strings.TrimSpace(productID)
	var rec models.FoodRecord
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("no food record found for product ID '%s'", productID)
	}
	if err != nil {
		return nil, Internal(err)
	}
	return &rec, nil
}

// Verify recomputes the metadata hash of a stored record and checks it
// against the hash anchored on chain.
func (s *VerificationService) Verify(ctx context.Context, productID string) (*VerificationResult, error) {
	if s.chain == nil {
		return nil, Unavailable("on-chain verification is not configured")
	}
	rec, err := s.record(ctx, productID)
	if err != nil {
		return nil, err
	}

	recomputed, err := blockchain.CalculateMetadataHash([]byte(rec.MetadataJSON))
	if err != nil {
		return nil, Internal(err)
	}
	onchain, err := s.chain.FetchOnchainHash(ctx, rec.ProductID)
	if err != nil {
		return nil, Upstream("failed to read metadata hash from chain", err)
	}
	registered, err := s.chain.MetadataHashExists(ctx, recomputed)
	if err != nil {
		return nil, Upstream("failed to query metadata hash registration", err)
	}

	res := &VerificationResult{
		ProductID:      rec.ProductID,
		StoredHash:     rec.OnchainMetadataHash,
		RecomputedHash: recomputed.Hex(),
		OnchainHash:    onchain.Hex(),
		HashRegistered: registered,
		CheckedAt:      time.Now().UTC(),
	}
	// Stored hashes keep the casing the recorder submitted.
	res.MetadataIntact = strings.EqualFold(res.RecomputedHash, res.StoredHash)
	res.OnchainMatch = strings.EqualFold(res.OnchainHash, res.StoredHash)
	res.Verified = res.MetadataIntact && res.OnchainMatch

	entry := &models.VerificationLog{
		ProductID:      res.ProductID,
		StoredHash:     res.StoredHash,
		RecomputedHash: res.RecomputedHash,
		OnchainHash:    res.OnchainHash,
		HashRegistered: res.HashRegistered,
		Outcome:        models.OutcomeMismatch,
		CheckedAt:      res.CheckedAt,
	}
	if res.Verified {
		entry.Outcome = models.OutcomeVerified
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.log.Warn("persist verification log", zap.String("product_id", res.ProductID), zap.Error(err))
	}

	s.bus.Emit(ctx, EventRecordVerified, res.ProductID, res)
	s.log.Info("food record verified",
		zap.String("product_id", res.ProductID),
		zap.String("outcome", entry.Outcome))
	return res, nil
}

// History returns the most recent verifications of productID, newest first.
func (s *VerificationService) History(ctx context.Context, productID string) ([]models.VerificationLog, error) {
	rec, err := s.record(ctx, productID)
	if err != nil {
		return nil, err
	}
	logs := make([]models.VerificationLog, 0)
	if err := s.db.WithContext(ctx).
		Where("product_id = ?", rec.ProductID).
		Order("checked_at DESC").Order("id DESC").
		Limit(historyLimit).
		Find(&logs).Error; err != nil {
		return nil, Internal(err)
	}
	return logs, nil
}
