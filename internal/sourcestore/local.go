package sourcestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: config.Dir}, nil
}

func (s *localStore) Save(ctx context.Context, key string, text string) error {
	_ = ctx
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, key), []byte(text), 0o644)
}

func (s *localStore) Fetch(ctx context.Context, key string) (string, error) {
	_ = ctx
	if err := validateKey(key); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("source key is required")
	}
	if strings.Contains(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid source key")
	}
	return nil
}
