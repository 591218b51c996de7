package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SecretsDir - стандартный путь Docker Secrets.
var SecretsDir = "/run/secrets"

// ReadSecret читает секрет из файла SecretsDir/<name>. Если файла нет,
// используется переменная окружения с именем секрета в верхнем регистре
// (для локального запуска без Docker).
func ReadSecret(name string) (string, error) {
	filePath := filepath.Join(SecretsDir, name)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", filePath)
		}
		return secret, nil
	}

	envKey := strings.ToUpper(name)
	if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("failed to read secret file %s and %s is not set: %w", filePath, envKey, err)
}
