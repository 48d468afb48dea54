package config

import (
	"path/filepath"
	"testing"

	"github.com/ActorLancer/Food-Info-Trace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"PORT", "DB_DRIVER", "CHAIN_RPC_URL", "CONTRACT_ADDRESS", "VERIFY_METADATA_HASH", "EXPECTED_CHAIN_ID"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "0x539", cfg.ExpectedChainID)
	assert.False(t, cfg.VerifyMetadataHash)
	assert.False(t, cfg.ChainEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("VERIFY_METADATA_HASH", "true")
	t.Setenv("CHAIN_RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.VerifyMetadataHash)
	assert.True(t, cfg.ChainEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("VERIFY_METADATA_HASH", "maybe")
	_, err = Load()
	assert.Error(t, err)
}

func TestInitDBWithSQLite(t *testing.T) {
	err := InitDB(&Config{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "t.db")})
	require.NoError(t, err)
	require.NotNil(t, DB)
	assert.True(t, DB.Migrator().HasTable(&models.FoodRecord{}))
	assert.True(t, DB.Migrator().HasTable(&models.VerificationLog{}))
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}
