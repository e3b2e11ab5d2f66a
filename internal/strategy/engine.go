package strategy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/textforge/humanizer-back/internal/domain"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

const (
	MinLevel = 1
	MaxLevel = 5
)

// Strategy rewrites one chunk of text. Implementations must be pure
// functions of (text, level, context), carry no side effects, and must not
// alter placeholder tokens standing in for protected segments.
type Strategy interface {
	Name() domain.StrategyName
	Apply(text string, level int, ctx domain.ChunkContext) (string, error)
}

// Engine is the registry of named rewriting strategies.
type Engine struct {
	mu         sync.RWMutex
	strategies map[domain.StrategyName]Strategy
}

// NewEngine returns an engine with the built-in strategies registered.
func NewEngine() *Engine {
	engine := &Engine{strategies: make(map[domain.StrategyName]Strategy)}
	engine.Register(casualStrategy{})
	engine.Register(professionalStrategy{})
	engine.Register(academicStrategy{})
	return engine
}

func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.Name()] = s
}

// Known reports whether name resolves to a registered strategy or "auto".
func (e *Engine) Known(name domain.StrategyName) bool {
	if name == domain.StrategyAuto {
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.strategies[name]
	return ok
}

// Resolve maps "auto" to a concrete strategy from the document's style
// profile; explicit names pass through after a registry check. The tone
// switch is exhaustive over the domain.Tone enumeration.
func (e *Engine) Resolve(name domain.StrategyName, profile domain.StyleProfile) (domain.StrategyName, error) {
	if name != domain.StrategyAuto {
		if !e.Known(name) {
			return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
		}
		return name, nil
	}

	switch profile.Tone {
	case domain.ToneCasual:
		return domain.StrategyCasual, nil
	case domain.ToneAcademic:
		return domain.StrategyAcademic, nil
	case domain.ToneFormal:
		if profile.Formality >= 0.7 {
			return domain.StrategyAcademic, nil
		}
		return domain.StrategyProfessional, nil
	case domain.ToneNeutral:
		return domain.StrategyProfessional, nil
	default:
		return domain.StrategyProfessional, nil
	}
}

// Apply runs the named strategy over text. Level is clamped to [1,5] by the
// caller's validation; out-of-range values here are a programming error.
func (e *Engine) Apply(name domain.StrategyName, text string, level int, ctx domain.ChunkContext) (string, error) {
	e.mu.RLock()
	s, ok := e.strategies[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	if level < MinLevel || level > MaxLevel {
		return "", fmt.Errorf("level %d outside [%d,%d]", level, MinLevel, MaxLevel)
	}
	return s.Apply(text, level, ctx)
}
