package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that carry credentials.
const (
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// LoadDotEnv reads KEY=VALUE files into the process environment. Variables
// that are already set win. Missing files are ignored; with no arguments
// ".env" in the working directory is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("dotenv %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays credentials from the environment onto cfg. A set
// variable replaces the file value.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, os.LookupEnv)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPracticumToken); ok && strings.TrimSpace(v) != "" {
		cfg.Practicum.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTelegramToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTelegramChatID); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q: %w", EnvTelegramChatID, v, err)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

// MissingCredentials lists the credentials that are still empty, by their
// environment variable name. An empty result means the bot can start.
func MissingCredentials(cfg *Config) []string {
	var missing []string
	if strings.TrimSpace(cfg.Practicum.Token) == "" {
		missing = append(missing, EnvPracticumToken)
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		missing = append(missing, EnvTelegramToken)
	}
	if cfg.Telegram.ChatID == 0 {
		missing = append(missing, EnvTelegramChatID)
	}
	return missing
}
