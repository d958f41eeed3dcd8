package generation

import (
	"context"
	"fmt"
)

// #region plan-config

// PlanConfig is the generation configuration for one user's plan.
type PlanConfig struct {
	Plan             string `yaml:"plan"`
	UserID           string `yaml:"-"`
	Tone             string `yaml:"tone"`
	StylePrompt      string `yaml:"style_prompt"`
	MaxRegenerations int    `yaml:"max_regenerations"`
	AdvancedReview   bool   `yaml:"advanced_review"`
	Strictness       string `yaml:"strictness"`        // "basic" or "strict"
	TransparencyMode string `yaml:"transparency_mode"` // unified, signature or bio; empty means unified
}

// DefaultMaxRegenerations bounds the quality-control loop when a plan does
// not say otherwise.
const DefaultMaxRegenerations = 3

// DefaultPlanConfig is used when the plan lookup fails or returns nothing.
func DefaultPlanConfig(userID string) PlanConfig {
	return PlanConfig{
		Plan:             "starter_trial",
		UserID:           userID,
		Tone:             "balanceado",
		MaxRegenerations: 0,
		AdvancedReview:   false,
		Strictness:       "strict",
	}
}

// MaxAttempts returns the loop bound, defaulting when unset.
func (c PlanConfig) MaxAttempts() int {
	if c.MaxRegenerations > 0 {
		return c.MaxRegenerations
	}
	return DefaultMaxRegenerations
}

// #endregion

// #region plan-source

// PlanSource looks up the generation config for a user.
type PlanSource interface {
	PlanConfig(ctx context.Context, userID, plan string) (PlanConfig, error)
}

// StaticPlans serves plan configs from a fixed map keyed by plan name.
type StaticPlans map[string]PlanConfig

// DefaultPlans returns the built-in plan table. Only plus and custom are
// entitled to the quality-control loop.
func DefaultPlans() StaticPlans {
	return StaticPlans{
		"starter_trial": {Plan: "starter_trial", Tone: "balanceado", Strictness: "strict"},
		"starter":       {Plan: "starter", Tone: "balanceado", Strictness: "strict"},
		"pro":           {Plan: "pro", Tone: "balanceado", Strictness: "basic"},
		"plus":          {Plan: "plus", Tone: "balanceado", Strictness: "basic", AdvancedReview: true, MaxRegenerations: 3},
		"custom":        {Plan: "custom", Tone: "balanceado", Strictness: "basic", AdvancedReview: true, MaxRegenerations: 3},
	}
}

// PlanConfig implements PlanSource.
func (s StaticPlans) PlanConfig(_ context.Context, userID, plan string) (PlanConfig, error) {
	cfg, ok := s[plan]
	if !ok {
		return PlanConfig{}, fmt.Errorf("unknown plan %q", plan)
	}
	cfg.UserID = userID
	return cfg, nil
}

// #endregion
