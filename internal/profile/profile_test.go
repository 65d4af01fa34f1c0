package profile

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile(t *testing.T) *Profile {
	t.Helper()
	p := FromViper(viper.New(), "test")
	p.OpenAIAPIKey = "sk-test"
	p.Data = t.TempDir()
	return p
}

func TestFromViperDefaults(t *testing.T) {
	p := FromViper(viper.New(), "1.0.0")

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, 8000, p.Port)
	assert.Equal(t, 5, p.MaxRounds)
	assert.Equal(t, 30*time.Minute, p.SessionTTL)
	assert.Equal(t, 1000, p.SessionCapacity)
	assert.Equal(t, 20, p.HistoryCap)
	assert.Equal(t, "zh", p.DefaultLanguage)
	assert.Equal(t, 4, p.PromptHistoryWindow)
	assert.Equal(t, 1500, p.ChunkTokenBudget)
	assert.Equal(t, 5, p.TopK)
	assert.InDelta(t, 0.7, p.SimilarityFloor, 1e-9)
	assert.Equal(t, "1.0.0", p.Version)
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		p := validProfile(t)
		require.NoError(t, p.Validate())
		// sqlite DSN is derived from the data dir when unset
		assert.Contains(t, p.DSN, "sitechat_dev.db")
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		p := validProfile(t)
		p.OpenAIAPIKey = ""
		assert.Error(t, p.Validate())
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		p := validProfile(t)
		p.Driver = "mysql"
		assert.Error(t, p.Validate())
	})

	t.Run("PostgresRequiresDSN", func(t *testing.T) {
		p := validProfile(t)
		p.Driver = "postgres"
		p.DSN = ""
		assert.Error(t, p.Validate())
	})

	t.Run("SimilarityFloorRange", func(t *testing.T) {
		p := validProfile(t)
		p.SimilarityFloor = 1.5
		assert.Error(t, p.Validate())

		p = validProfile(t)
		p.SimilarityFloor = -0.1
		assert.Error(t, p.Validate())
	})

	t.Run("UnsupportedLanguage", func(t *testing.T) {
		p := validProfile(t)
		p.DefaultLanguage = "fr"
		assert.Error(t, p.Validate())
	})

	t.Run("UnknownModeFallsBackToDev", func(t *testing.T) {
		p := validProfile(t)
		p.Mode = "demo"
		require.NoError(t, p.Validate())
		assert.Equal(t, "dev", p.Mode)
	})
}
