package config

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	_, err := redisOptions("")
	assert.Error(t, err)

	opt, err := redisOptions("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)

	opt, err = redisOptions("redis://:pw@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

func TestFirstEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URI", "redis://a:6379")
	t.Setenv("REDIS_URL", "redis://b:6379")
	assert.Equal(t, "redis://a:6379", firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"))
}

func TestMongoOptions(t *testing.T) {
	t.Setenv("MONGO_MAX_POOL", "")
	t.Setenv("MONGO_FORCE_TLS_CONFIG", "")
	opts := mongoOptions("mongodb://localhost:27017")
	require.NotNil(t, opts.MaxPoolSize)
	assert.EqualValues(t, defaultMongoPool, *opts.MaxPoolSize)
	assert.Nil(t, opts.TLSConfig)

	t.Setenv("MONGO_MAX_POOL", "50")
	t.Setenv("MONGO_FORCE_TLS_CONFIG", "true")
	opts = mongoOptions("mongodb://localhost:27017")
	assert.EqualValues(t, 50, *opts.MaxPoolSize)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), opts.TLSConfig.MaxVersion)
}
