package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useSecretsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev := SecretsDir
	SecretsDir = dir
	t.Cleanup(func() { SecretsDir = prev })
	return dir
}

func TestReadSecret(t *testing.T) {
	dir := useSecretsDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_password"), []byte("  s3cret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("   "), 0o600))

	value, err := ReadSecret("db_password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	_, err = ReadSecret("empty")
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "from-env")
	value, err = ReadSecret("jwt_secret")
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	_, err = ReadSecret("missing_secret")
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	useSecretsDir(t)
	t.Setenv("AI_API_KEY", "key")
	t.Setenv("PIPELINE_IMAGE_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.AI.APIKey)
	assert.Equal(t, AIProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.ImageTimeout)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "storybook_generation_tasks", cfg.RabbitMQ.TaskQueue.Name)
	assert.Equal(t, "storybook_generation_tasks_dlq", cfg.RabbitMQ.TaskQueue.DeadLetterQueue())
	assert.Equal(t, "storybook_generation_results", cfg.RabbitMQ.ResultQueueName)
	assert.Equal(t, RepositoryDriverPostgres, cfg.Database.Driver)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 5, cfg.Worker.DBMaxAttempts)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		AI:       AIConfig{Provider: AIProviderOpenAI},
		Database: DatabaseConfig{Driver: RepositoryDriverPostgres},
	}
	assert.ErrorIs(t, cfg.ValidateForWorker(), ErrMissingSecret)

	cfg.AI.APIKey = "key"
	assert.ErrorIs(t, cfg.ValidateForWorker(), ErrMissingSecret, "db password still missing")

	cfg.Database.Password = "pw"
	assert.NoError(t, cfg.ValidateForWorker())
	assert.ErrorIs(t, cfg.ValidateForAPI(), ErrMissingSecret)

	cfg.JWT.Secret = "jwt"
	assert.NoError(t, cfg.ValidateForAPI())

	ollama := &Config{
		AI:        AIConfig{Provider: AIProviderOllama},
		Database:  DatabaseConfig{Driver: RepositoryDriverFirestore},
		Firestore: FirestoreConfig{ProjectID: "demo"},
	}
	assert.NoError(t, ollama.ValidateForWorker())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "p@ss", Name: "books", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5432/books?sslmode=disable", db.DSN())
	assert.NotContains(t, db.MaskedDSN(), "p%40ss")
}
