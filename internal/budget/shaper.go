package budget

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/tareqmamari/elasticsearch-mcp-server/internal/errors"
	"github.com/tareqmamari/elasticsearch-mcp-server/internal/format"
)

// Options controls a single Shape call
type Options struct {
	// Level is the requested detail level; empty means auto
	Level Level
	// Budget is the token ceiling; zero uses the shaper default
	Budget int
	// AllowOverride skips budget checks (break_token_rule)
	AllowOverride bool
	// Enforce makes explicit compact/minimal requests degrade further when
	// they still exceed the budget
	Enforce bool
}

// TokenStats reports what shaping saved
type TokenStats struct {
	Original  int `json:"original"`
	Optimized int `json:"optimized"`
	Limit     int `json:"limit"`
}

// SavedPercent returns the share of the original tokens saved, never negative.
func (s TokenStats) SavedPercent() float64 {
	if s.Original <= 0 || s.Optimized >= s.Original {
		return 0
	}
	return float64(s.Original-s.Optimized) / float64(s.Original) * 100
}

// Envelope is the shaped result of one tool call
type Envelope struct {
	Level       Level       `json:"level"`
	Text        string      `json:"text"`
	Stats       *TokenStats `json:"token_stats,omitempty"`
	Exceeded    bool        `json:"exceeded,omitempty"`
	Empty       bool        `json:"empty,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// Overage returns a BUDGET_EXCEEDED error describing the overage, or nil.
// It is informational; the envelope text is still returned to the caller.
func (e Envelope) Overage() error {
	if !e.Exceeded || e.Stats == nil {
		return nil
	}
	return apperrors.NewBudgetExceeded(e.Stats.Optimized, e.Stats.Limit)
}

// Shaper picks detail levels against a token budget
type Shaper struct {
	estimator     *Estimator
	defaultBudget int
	logger        *zap.Logger
}

// NewShaper creates a shaper. defaultBudget applies when a call passes none.
func NewShaper(estimator *Estimator, defaultBudget int, logger *zap.Logger) *Shaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if estimator == nil {
		estimator = NewEstimator(logger)
	}
	return &Shaper{estimator: estimator, defaultBudget: defaultBudget, logger: logger}
}

// Estimator returns the shaper's estimator
func (s *Shaper) Estimator() *Estimator { return s.estimator }

// DefaultBudget returns the configured budget
func (s *Shaper) DefaultBudget() int { return s.defaultBudget }

// Shape renders summary at the richest level allowed by opts. raw is the
// unshaped data; it is measured for the savings report and returned as-is
// only for LevelRaw.
func (s *Shaper) Shape(raw any, summary Renderable, opts Options) Envelope {
	if summary == nil || summary.Len() == 0 {
		kind := "results"
		if summary != nil {
			kind = summary.Kind()
		}
		return Envelope{Level: LevelMinimal, Text: fmt.Sprintf("No %s found.", kind), Empty: true}
	}
	if opts.Budget <= 0 {
		opts.Budget = s.defaultBudget
	}
	if opts.Level == "" {
		opts.Level = LevelAuto
	}

	var (
		env    Envelope
		tokens int
	)
	switch {
	case opts.Level == LevelRaw:
		env.Level = LevelRaw
		env.Text = Serialize(raw)
		tokens = s.estimator.Count(env.Text)
	case summary.Len() == 1:
		env.Level = LevelFull
		env.Text = summary.Detail()
		tokens = s.estimator.Count(env.Text)
		env.Exceeded = !opts.AllowOverride && opts.Level != LevelFull && tokens > opts.Budget
	case opts.Level == LevelFull:
		env.Level = LevelFull
		env.Text = summary.Render(LevelFull)
		tokens = s.estimator.Count(env.Text)
	case opts.Level == LevelAuto:
		env, tokens = s.walk(summary, 0, opts)
	default:
		ladder := summary.Ladder()
		idx := ladderIndex(ladder, opts.Level)
		if opts.Enforce && !opts.AllowOverride {
			env, tokens = s.walk(summary, idx, opts)
			break
		}
		env.Level = ladder[idx]
		env.Text = summary.Render(env.Level)
		tokens = s.estimator.Count(env.Text)
		env.Exceeded = !opts.AllowOverride && tokens > opts.Budget
	}

	original := tokens
	if raw != nil && opts.Level != LevelRaw {
		original = s.estimator.Estimate(raw)
	}
	env.Stats = &TokenStats{Original: original, Optimized: tokens, Limit: opts.Budget}

	if env.Exceeded {
		env.Suggestions = suggestions(summary.Kind(), env.Level)
		env.Text += overageNote(*env.Stats, env.Suggestions)
		s.logger.Debug("Response exceeds token budget",
			zap.String("kind", summary.Kind()),
			zap.String("level", string(env.Level)),
			zap.Int("tokens", tokens),
			zap.Int("budget", opts.Budget),
		)
	}
	env.Text += Footer(env.Level, *env.Stats)
	return env
}

// walk tries the ladder from index from and commits to the first rendering
// that fits. When none fits, the last rendering is returned flagged.
func (s *Shaper) walk(summary Renderable, from int, opts Options) (Envelope, int) {
	ladder := summary.Ladder()
	var (
		text   string
		tokens int
	)
	for i := from; i < len(ladder); i++ {
		text = summary.Render(ladder[i])
		tokens = s.estimator.Count(text)
		if opts.AllowOverride || tokens <= opts.Budget {
			return Envelope{Level: ladder[i], Text: text}, tokens
		}
	}
	return Envelope{Level: ladder[len(ladder)-1], Text: text, Exceeded: true}, tokens
}

// ladderIndex maps a requested level onto the kind's ladder. Compact and
// comparison are interchangeable middle rungs.
func ladderIndex(ladder []Level, level Level) int {
	for i, l := range ladder {
		if l == level {
			return i
		}
	}
	switch level {
	case LevelCompact, LevelComparison:
		if len(ladder) > 2 {
			return 1
		}
	case LevelMinimal:
		return len(ladder) - 1
	}
	return 0
}

// Footer is the savings line appended to every shaped response.
func Footer(level Level, stats TokenStats) string {
	saved := "no savings"
	if p := stats.SavedPercent(); p > 0 {
		saved = format.Percent(p) + " saved"
	}
	return fmt.Sprintf("\n\n---\n📊 Tokens: ~%s of %s budget (raw ~%s, %s) · level: %s",
		format.Number(uint64(stats.Optimized)),
		format.Number(uint64(stats.Limit)),
		format.Number(uint64(stats.Original)),
		saved,
		level,
	)
}

func overageNote(stats TokenStats, hints []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n⚠️ Response is ~%s tokens, over the %s-token budget.",
		format.Number(uint64(stats.Optimized)), format.Number(uint64(stats.Limit)))
	for _, h := range hints {
		b.WriteString("\n  • ")
		b.WriteString(h)
	}
	return b.String()
}

func suggestions(kind string, level Level) []string {
	var out []string
	switch kind {
	case "indices", "shards":
		out = append(out, "Narrow index_pattern to fewer indices")
	case "mappings":
		out = append(out, "Filter with field_pattern, field_types or capability")
	case "data streams":
		out = append(out, "Narrow name_pattern to fewer data streams")
	default:
		out = append(out, "Request fewer results (smaller size or a more selective query)")
	}
	if level != LevelMinimal {
		out = append(out, "Use detail_level=minimal")
	}
	out = append(out, "Raise max_tokens or set break_token_rule=true to accept a larger response")
	return out
}
