// Package retention implements the minimal periodic sweeper spec.md keeps
// deliberately out of core scope ("trivial periodic task"). Grounded on
// original_source/retention.rs, whose own implementation is likewise a
// placeholder: a rule list and a ticker that, per rule, appends a
// policy_evaluated audit event on each tick rather than performing any
// real deletion. This repository matches that scope exactly rather than
// inventing enforcement the spec never asked for.
package retention

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

// Rule names a node type/status combination subject to periodic review.
// No implementation here ever deletes a node; it only logs that the rule
// was checked, matching the original's placeholder scope.
type Rule struct {
	NodeTypes []ctxtypes.NodeType   `json:"nodeTypes,omitempty"`
	Statuses  []ctxtypes.NodeStatus `json:"statuses,omitempty"`
	MaxAge    time.Duration         `json:"maxAge,omitempty"`
}

// Config is the retention.json document: a rule list and the sweep
// interval. An empty Rules list disables the sweeper entirely.
type Config struct {
	Rules         []Rule        `json:"rules"`
	CheckInterval time.Duration `json:"checkInterval"`
}

// Load reads a retention document from path. A missing or malformed file
// yields an empty, disabled Config rather than an error, matching
// policy.Load's load-or-default posture for optional documents.
func Load(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

const defaultCheckInterval = time.Hour

// Spawn starts the sweeper's ticker loop in a new goroutine and returns
// immediately. If cfg has no rules, Spawn does nothing and returns a
// no-op stop function. The returned function stops the sweeper; it is
// safe to call once.
func Spawn(ctx context.Context, s store.ContextStore, cfg Config, logger *logrus.Logger) (stop func()) {
	if len(cfg.Rules) == 0 {
		return func() {}
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(s, cfg, logger)
			}
		}
	}()

	return cancel
}

func sweepOnce(s store.ContextStore, cfg Config, logger *logrus.Logger) {
	for i, rule := range cfg.Rules {
		event := ctxtypes.NewAuditEvent("system", "system", ctxtypes.ActionPolicyEvaluated, "retention", ctxtypes.OutcomeSuccess)
		event = event.WithDetails(map[string]interface{}{
			"ruleIndex": i,
			"nodeTypes": rule.NodeTypes,
			"statuses":  rule.Statuses,
			"maxAge":    rule.MaxAge.String(),
		})
		if err := s.AppendAudit(event); err != nil {
			logger.WithError(err).Warn("retention: failed to record sweep audit event")
		}
	}
}
