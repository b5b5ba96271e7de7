package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Redis.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.Minio.PresignExpiry)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
llm:
  model: gpt-4o
  timeout: 5s
database:
  driver: postgres
  host: db
  user: u
  password: p
  name: runs
inference:
  endpoints:
    autism:
      url: http://autism.local/predict
`), 0o600))

	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("PORT", "9100")
	t.Setenv("INFERENCE_BRAIN_TUMOR_URL", "http://tumor.local/predict")
	t.Setenv("ADMIN_API_KEYS", "ops:k1, ci:k2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "http://autism.local/predict", cfg.Inference.Endpoints["autism"].URL)
	assert.Equal(t, "http://tumor.local/predict", cfg.Inference.Endpoints["brain-tumor"].URL)
	assert.Equal(t, map[string]string{"ops": "k1", "ci": "k2"}, cfg.Admin.APIKeys)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=runs sslmode=disable", cfg.PostgresDSN())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	var c Config
	c.Database.User, c.Database.Password = "root", "secret"
	c.Database.Host, c.Database.Port, c.Database.Name = "localhost", 3306, "hub"
	assert.Equal(t, "root:secret@tcp(localhost:3306)/hub?parseTime=true&charset=utf8mb4&loc=UTC", c.MySQLDSN())
}
