package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModerationPolicy is the operator-tunable part of the moderation engine.
type ModerationPolicy struct {
	Enabled              bool
	AutoApproveThreshold float64
}

func DefaultModerationPolicy() ModerationPolicy {
	return ModerationPolicy{
		Enabled:              true,
		AutoApproveThreshold: 0.8,
	}
}

type moderationPolicyFile struct {
	Enabled              *bool    `yaml:"enabled"`
	AutoApproveThreshold *float64 `yaml:"auto_approve_threshold"`
}

// LoadModerationPolicy reads the policy file. An empty path and a missing
// file both mean the defaults; a present but unreadable or invalid file is an
// error, so a typo cannot silently disable moderation.
func LoadModerationPolicy(path string) (ModerationPolicy, error) {
	policy := DefaultModerationPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy, nil
		}
		return ModerationPolicy{}, fmt.Errorf("read moderation policy: %w", err)
	}

	var file moderationPolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ModerationPolicy{}, fmt.Errorf("parse moderation policy: %w", err)
	}

	if file.Enabled != nil {
		policy.Enabled = *file.Enabled
	}
	if file.AutoApproveThreshold != nil {
		policy.AutoApproveThreshold = *file.AutoApproveThreshold
	}
	if policy.AutoApproveThreshold < 0 || policy.AutoApproveThreshold > 1 {
		return ModerationPolicy{}, fmt.Errorf("moderation policy: auto_approve_threshold %v outside [0,1]", policy.AutoApproveThreshold)
	}
	return policy, nil
}
