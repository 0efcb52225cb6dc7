package configuration

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestReadProperties(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)

		config, err := ReadProperties()
		require.NoError(t, err)
		assert.Equal(t, "3030", config.Server.Port)
		assert.Equal(t, time.Minute, config.Server.ReadTimeout)
		assert.Equal(t, 5*time.Second, config.Server.ReadHeaderTimeout)
		assert.Equal(t, StoreDriverMongo, config.StoreDriver)
		assert.Equal(t, 24*time.Hour, config.Auth.TokenTTL)
		assert.Equal(t, []string{"http://localhost:3000"}, config.Server.CorsOrigins)
		assert.True(t, config.Mongo.Transactions)
		assert.Empty(t, config.Redis.Addr)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("HTTP_CORS_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("AUTH_TOKEN_TTL", "1h")
		t.Setenv("MONGO_TRANSACTIONS", "false")

		config, err := ReadProperties()
		require.NoError(t, err)
		assert.Equal(t, StoreDriverMemory, config.StoreDriver)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, config.Server.CorsOrigins)
		assert.Equal(t, time.Hour, config.Auth.TokenTTL)
		assert.False(t, config.Mongo.Transactions)
	})

	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "")
		_, err := ReadProperties()
		assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", strings.Repeat("x", 8))
		_, err := ReadProperties()
		assert.Error(t, err)
	})

	t.Run("unknown store driver", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", testSecret)
		t.Setenv("STORE_DRIVER", "postgres")
		_, err := ReadProperties()
		assert.ErrorContains(t, err, "postgres")
	})
}
