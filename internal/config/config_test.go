package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4020", cfg.HTTPPort)
	assert.Equal(t, DriverSqlite, cfg.DBDriver)
	assert.Equal(t, FileStorageLocal, cfg.FileStorage)
	assert.Equal(t, []string{"member", "admin"}, cfg.AllowedRoles)
	assert.Equal(t, 720*time.Hour, cfg.BackupRetention)
	assert.Nil(t, GetRedis(cfg))
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "kb")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ALLOWED_ROLES", "editor, admin")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "host=db user=kb password=secret dbname=knowledge port=5432 sslmode=disable", cfg.DSN())
	assert.Equal(t, []string{"editor", "admin"}, cfg.AllowedRoles)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)

	client := GetRedis(cfg)
	require.NotNil(t, client)
	assert.Equal(t, "localhost:6379", client.Options().Addr)
	_ = client.Close()
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "unknown file storage", env: map[string]string{"FILE_STORAGE": "ftp"}},
		{name: "s3 without bucket", env: map[string]string{"FILE_STORAGE": "s3", "S3_URL": "http://minio:9000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
