package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotenv loads the given dotenv files into the process environment, files that do not
// exist are skipped. Variables that are already set are never overwritten.
func LoadDotenv(files ...string) error {
	for _, f := range files {
		_, err := os.Stat(f)
		if os.IsNotExist(err) {
			continue
		}
		err = godotenv.Load(f)
		if err != nil {
			return err
		}
		slog.Debug("loaded environment file", "file", f)
	}
	return nil
}

// EnvString sets `target` to the value of `key` when it is set and non-empty.
func EnvString(key string, target *string) {
	value := os.Getenv(key)
	if value != "" {
		*target = value
	}
}

// EnvInt is EnvString for integers, values that fail to parse are an error.
func EnvInt(key string, target *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}
