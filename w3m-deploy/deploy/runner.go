package deploy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/slices"
)

// DefaultGroup is the script group run when none is requested.
const DefaultGroup = "deploy"

// Script is a deploy procedure. Scripts of a group run in name order.
type Script struct {
	Name  string
	Group string
	Tags  []string
	Run   func(ctx context.Context, env Env) error
}

// Select returns the scripts of group that carry at least one of tags,
// sorted by name. No tags selects the whole group.
func Select(scripts []Script, group string, tags []string) []Script {
	var out []Script
	for _, s := range scripts {
		if s.Group != group {
			continue
		}
		if len(tags) > 0 && slices.IndexFunc(s.Tags, func(t string) bool { return slices.Contains(tags, t) }) < 0 {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Groups returns the distinct groups of scripts, sorted.
func Groups(scripts []Script) []string {
	var groups []string
	for _, s := range scripts {
		if !slices.Contains(groups, s.Group) {
			groups = append(groups, s.Group)
		}
	}
	slices.Sort(groups)
	return groups
}

type ScriptResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

type Runner struct {
	log  log.Logger
	metr Metricer
}

func NewRunner(l log.Logger, m Metricer) *Runner {
	if m == nil {
		m = &NoopMetrics{}
	}
	return &Runner{log: l, metr: m}
}

// Run executes scripts one after another and stops at the first failure.
// The results cover every script that was started.
func (r *Runner) Run(ctx context.Context, env Env, scripts []Script) ([]ScriptResult, error) {
	results := make([]ScriptResult, 0, len(scripts))
	for _, s := range scripts {
		log := r.log.New("script", s.Name)
		log.Info("Running deploy script", "tags", s.Tags)
		start := time.Now()
		err := s.Run(ctx, env)
		d := time.Since(start)
		r.metr.RecordScript(s.Name, d, err)
		results = append(results, ScriptResult{Name: s.Name, Duration: d, Err: err})
		if err != nil {
			log.Error("Deploy script failed", "duration", d, "err", err)
			return results, fmt.Errorf("script %s failed: %w", s.Name, err)
		}
		log.Info("Deploy script done", "duration", d)
	}
	return results, nil
}
