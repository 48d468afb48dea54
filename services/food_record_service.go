package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"
	"github.com/ActorLancer/Food-Info-Trace/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	maxProductIDLen = 255
)

var (
	productIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	hash32Pattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// CreateFoodRecordRequest is the body of POST /api/food-records.
type CreateFoodRecordRequest struct {
	ProductID           string          `json:"productId"`
	Metadata            json.RawMessage `json:"metadata"`
	MetadataHashOnChain string          `json:"metadataHashOnChain"`
	TransactionHash     string          `json:"transactionHash"`
}

type FoodRecordListItem struct {
	ProductID           string    `json:"product_id"`
	ProductName         *string   `json:"product_name"`
	OnchainMetadataHash string    `json:"onchain_metadata_hash"`
	CreatedAt           time.Time `json:"created_at"`
}

type FoodRecordPage struct {
	Items      []FoodRecordListItem `json:"items"`
	TotalItems int64                `json:"total_items"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int64                `json:"total_pages"`
}

type FoodRecordDetail struct {
	ProductID                 string          `json:"product_id"`
	MetadataJSON              json.RawMessage `json:"metadata_json"`
	OnchainMetadataHash       string          `json:"onchain_metadata_hash"`
	BlockchainTransactionHash string          `json:"blockchain_transaction_hash"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

type FoodRecordService struct {
	db      *gorm.DB
	bus     *EventBus
	archive Archiver
	log     *zap.Logger

	// VerifyHashOnCreate rejects records whose metadataHashOnChain is not
	// the keccak256 of the submitted metadata.
	VerifyHashOnCreate bool
}

func NewFoodRecordService(db *gorm.DB, bus *EventBus, archive Archiver, log *zap.Logger) *FoodRecordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FoodRecordService{db: db, bus: bus, archive: archive, log: log}
}

func (s *FoodRecordService) validate(req *CreateFoodRecordRequest) (compact []byte, err error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	switch {
	case req.ProductID == "":
		return nil, InvalidInput("productId is required")
	case len(req.ProductID) > maxProductIDLen:
		return nil, InvalidInput("productId must be at most %d characters", maxProductIDLen)
	case !productIDPattern.MatchString(req.ProductID):
		return nil, InvalidInput("productId may only contain letters, digits, '_' and '-'")
	}

	trimmed := strings.TrimSpace(string(req.Metadata))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, InvalidInput("metadata must be a JSON object")
	}
	compact, err = blockchain.CompactJSON([]byte(trimmed))
	if err != nil {
		return nil, InvalidInput("metadata is not valid JSON")
	}

	req.MetadataHashOnChain = strings.TrimSpace(req.MetadataHashOnChain)
	req.TransactionHash = strings.TrimSpace(req.TransactionHash)
	if !hash32Pattern.MatchString(req.MetadataHashOnChain) {
		return nil, InvalidInput("metadataHashOnChain must be a 0x-prefixed 32-byte hex string")
	}
	if !hash32Pattern.MatchString(req.TransactionHash) {
		return nil, InvalidInput("transactionHash must be a 0x-prefixed 32-byte hex string")
	}

	if s.VerifyHashOnCreate {
		sum, err := blockchain.CalculateMetadataHash(compact)
		if err != nil {
			return nil, InvalidInput("metadata is not valid JSON")
		}
		if !strings.EqualFold(sum.Hex(), req.MetadataHashOnChain) {
			return nil, InvalidInput("metadataHashOnChain does not match metadata (expected %s)", sum.Hex())
		}
	}
	return compact, nil
}

// Create stores a record whose hash is already anchored on chain.
func (s *FoodRecordService) Create(ctx context.Context, req CreateFoodRecordRequest) (*models.FoodRecord, error) {
	compact, err := s.validate(&req)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.FoodRecord{}).
		Where("product_id = ?", req.ProductID).Count(&n).Error; err != nil {
		return nil, Internal(err)
	}
	if n > 0 {
		return nil, Conflict("product ID '%s' already exists", req.ProductID)
	}

	rec := &models.FoodRecord{
		ProductID:                 req.ProductID,
		MetadataJSON:              string(compact),
		OnchainMetadataHash:       req.MetadataHashOnChain,
		BlockchainTransactionHash: req.TransactionHash,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, Conflict("product ID '%s' already exists", req.ProductID)
		}
		return nil, Internal(err)
	}

	if s.archive != nil {
		if key, err := s.archive.Archive(ctx, rec.ProductID, compact); err != nil {
			s.log.Warn("archive metadata", zap.String("product_id", rec.ProductID), zap.Error(err))
		} else {
			s.log.Debug("archived metadata", zap.String("product_id", rec.ProductID), zap.String("key", key))
		}
	}

	s.bus.Emit(ctx, EventRecordCreated, rec.ProductID, toListItem(rec))
	s.log.Info("food record created",
		zap.String("product_id", rec.ProductID),
		zap.String("metadata_hash", rec.OnchainMetadataHash))
	return rec, nil
}

// NormalizePage clamps pagination parameters into range. Defaults apply
// only to absent parameters, so page_size=0 means one item per page.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// List returns one page of records, newest first.
func (s *FoodRecordService) List(ctx context.Context, page, pageSize int) (*FoodRecordPage, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.FoodRecord{}).Count(&total).Error; err != nil {
		return nil, Internal(err)
	}

	var rows []models.FoodRecord
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&rows).Error; err != nil {
		return nil, Internal(err)
	}

	items := make([]FoodRecordListItem, 0, len(rows))
	for i := range rows {
		items = append(items, toListItem(&rows[i]))
	}
	return &FoodRecordPage{
		Items:      items,
		TotalItems: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int64(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (s *FoodRecordService) find(ctx context.Context, productID string) (*models.FoodRecord, error) {
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

// Get returns the stored record for productID.
func (s *FoodRecordService) Get(ctx context.Context, productID string) (*FoodRecordDetail, error) {
	rec, err := s.find(ctx, strings.TrimSpace(productID))
	if err != nil {
		return nil, err
	}
	return &FoodRecordDetail{
		ProductID:                 rec.ProductID,
		MetadataJSON:              json.RawMessage(rec.MetadataJSON),
		OnchainMetadataHash:       rec.OnchainMetadataHash,
		BlockchainTransactionHash: rec.BlockchainTransactionHash,
		CreatedAt:                 rec.CreatedAt,
		UpdatedAt:                 rec.UpdatedAt,
	}, nil
}

func toListItem(rec *models.FoodRecord) FoodRecordListItem {
	return FoodRecordListItem{
		ProductID:           rec.ProductID,
		ProductName:         productName(rec.MetadataJSON),
		OnchainMetadataHash: rec.OnchainMetadataHash,
		CreatedAt:           rec.CreatedAt,
	}
}

func productName(metadata string) *string {
	var m struct {
		ProductName *string `json:"productName"`
	}
	if err := json.Unmarshal([]byte(metadata), &m); err != nil {
		return nil
	}
	return m.ProductName
}
