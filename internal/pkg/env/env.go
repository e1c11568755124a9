package env

import (
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv reads from the loaded .env map first, then the process
// environment, then the default.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the nearest .env file. Hosted deployments inject
// configuration through the process environment instead, so a missing
// file is not an error.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env", // from cmd/* during local runs
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}
	log.Info("[Env] no .env file found, using process environment")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
