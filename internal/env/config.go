package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Addr      string `env:"RESPIO_ADDR"`
	Username  string `env:"RESPIO_USERNAME"`
	Password  string `env:"RESPIO_PASSWORD"`
	DB        int    `env:"RESPIO_DB"`
	DebugHTTP bool   `env:"RESPIO_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
