package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"CLOUD_STORE", "DATA_FILE", "JWT_SECRET", "AWS_S3_BUCKET", "REDIS_ADDR", "MAX_UPLOAD_MB"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/db.json", cfg.Store.DataFile)
	assert.Equal(t, CloudStoreNone, cfg.Store.CloudStore)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "officer", cfg.Auth.OfficerRole)
	assert.Equal(t, 60, cfg.AWS.PresignExpireMinutes)
	assert.Equal(t, int64(10*1024*1024), cfg.Uploads.MaxBytes())
}

func TestLoadCloudStore(t *testing.T) {
	t.Setenv("CLOUD_STORE", " Mongo ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, CloudStoreMongo, cfg.Store.CloudStore)

	t.Setenv("CLOUD_STORE", "firestore")
	_, err = Load()
	assert.Error(t, err)
}
