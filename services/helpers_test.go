package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"
	"github.com/ActorLancer/Food-Info-Trace/config"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDB(&config.Config{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "records.db"),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

const (
	batchMetadata = `{"productId":"BATCH001","productName":"Organic Apples","producerInfo":"Green Farm","productionDate":"2024-05-01","origin":"Yunnan"}`
	txHash        = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func hashOf(t *testing.T, metadata string) string {
	t.Helper()
	h, err := blockchain.CalculateMetadataHash([]byte(metadata))
	require.NoError(t, err)
	return h.Hex()
}

func createReq(t *testing.T, productID, metadata string) CreateFoodRecordRequest {
	return CreateFoodRecordRequest{
		ProductID:           productID,
		Metadata:            []byte(metadata),
		MetadataHashOnChain: hashOf(t, metadata),
		TransactionHash:     txHash,
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []RecordEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev RecordEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

type memoryArchive struct {
	objects map[string][]byte
	err     error
}

func (a *memoryArchive) Archive(_ context.Context, productID string, metadata []byte) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[productID] = metadata
	return productID + ".json", nil
}
