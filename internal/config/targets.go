package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/serverwatch/internal/domain"
)

// TargetsFile is the YAML layout of TARGETS_FILE:
//
//	targets:
//	  - id: arena
//	    scope: "123456789"
//	    name: Arena
//	    host: 10.0.0.5
//	    port: 27015
//	    channel: "987654321"
//	    poll_interval: 15m
type TargetsFile struct {
	Targets []TargetEntry `yaml:"targets"`
}

type TargetEntry struct {
	ID           string        `yaml:"id"`
	Scope        string        `yaml:"scope"`
	Name         string        `yaml:"name"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Secret       string        `yaml:"secret"`
	Channel      string        `yaml:"channel"`
	Active       *bool         `yaml:"active"` // defaults to true
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoadTargets reads and validates a YAML target list.
func LoadTargets(path string) ([]domain.Target, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return ParseTargets(b)
}

// ParseTargets decodes a target list. Every invalid entry is reported, not just the first.
func ParseTargets(b []byte) ([]domain.Target, error) {
	var f TargetsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	var errs []error
	// ids are global: stores, caches and message handles key on the bare id
	seen := make(map[string]string, len(f.Targets))
	out := make([]domain.Target, 0, len(f.Targets))
	now := time.Now().UTC()

	for i, e := range f.Targets {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: id is required", i))
			continue
		}
		if scope, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("targets[%d]: duplicate id %q (already used in scope %q)", i, id, scope))
			continue
		}
		seen[id] = e.Scope

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		t := domain.Target{
			ID:           domain.TargetID(id),
			Scope:        e.Scope,
			Host:         strings.TrimSpace(e.Host),
			Port:         e.Port,
			Secret:       e.Secret,
			Name:         e.Name,
			Channel:      e.Channel,
			Active:       active,
			PollInterval: e.PollInterval,
			CreatedAt:    now,
		}
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("targets[%d]: %w", i, err))
			continue
		}
		if e.PollInterval < 0 {
			errs = append(errs, fmt.Errorf("targets[%d]: poll_interval must not be negative", i))
			continue
		}
		out = append(out, t)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
