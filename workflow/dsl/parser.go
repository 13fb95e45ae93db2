package dsl

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError 配置无法读取或解析
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("workflow config: %v", e.Err)
	}
	return fmt.Sprintf("workflow config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load 从文件读取并解析 GraphConfig
func Load(path string) (*GraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("read file: %w", err)}
	}
	cfg, err := Parse(data)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse 从 YAML 字节解析 GraphConfig
func Parse(data []byte) (*GraphConfig, error) {
	var cfg GraphConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parse YAML: %w", err)}
	}
	return &cfg, nil
}
