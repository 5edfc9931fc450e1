package skill

import (
	"context"
	"errors"
	"fmt"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Factory decodes the options of a definition and returns the constructor
// used to give every node its own behavior instance.
type Factory func(options map[string]any) (func() domain.Behavior, error)

var builtins = map[string]Factory{
	"noop":  optionless(func() domain.Behavior { return Base{} }),
	"wait":  withOptions[Wait](),
	"fail":  withOptions[Fail](),
	"error": withOptions[Raise](),
	"set":   optionless(func() domain.Behavior { return Set{} }),
	"check": optionless(func() domain.Behavior { return Check{} }),
	"hang":  optionless(func() domain.Behavior { return Hang{} }),

	"process": withOptions[Process](),
}

// Builtins lists the built-in behavior kinds.
func Builtins() []string {
	return []string{"check", "error", "fail", "hang", "noop", "process", "set", "wait"}
}

func optionless(newFn func() domain.Behavior) Factory {
	return func(options map[string]any) (func() domain.Behavior, error) {
		if len(options) > 0 {
			return nil, fmt.Errorf("behavior takes no options")
		}
		return newFn, nil
	}
}

func withOptions[T any, PT interface {
	*T
	domain.Behavior
}]() Factory {
	return func(options map[string]any) (func() domain.Behavior, error) {
		var opts T
		if err := decodeOptions(options, &opts); err != nil {
			return nil, err
		}
		return func() domain.Behavior {
			b := opts
			return PT(&b)
		}, nil
	}
}

func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

func paramInt(p domain.Params, key string, fallback int) (int, error) {
	v, ok := p[key]
	if !ok {
		return fallback, nil
	}
	var n int
	if err := mapstructure.WeakDecode(v, &n); err != nil {
		return 0, fmt.Errorf("param %q: %w", key, err)
	}
	return n, nil
}

func paramString(p domain.Params, key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("missing param %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("param %q must be a non-empty string", key)
	}
	return s, nil
}

// Base implements domain.Behavior with an immediately successful skill.
// Embed it to override only the hooks a skill needs.
type Base struct{}

func (Base) OnStart(ctx context.Context, sc *domain.SkillContext) error { return nil }

func (Base) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	return domain.StateSuccess, nil
}

func (Base) OnPreempt(ctx context.Context, sc *domain.SkillContext) domain.RunState {
	return domain.StatePreempted
}

func (Base) OnEnd(ctx context.Context, sc *domain.SkillContext) {}

// Wait runs for a number of ticks, then succeeds. A "ticks" param
// overrides the option.
type Wait struct {
	Base  `mapstructure:"-"`
	Ticks int `mapstructure:"ticks"`
}

func (w *Wait) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	n, err := paramInt(sc.Params, "ticks", w.Ticks)
	if err != nil {
		return domain.StateError, err
	}
	done := sc.Tick() + 1
	if done >= n {
		sc.Progress(done, "done waiting")
		return domain.StateSuccess, nil
	}
	sc.Progress(done, fmt.Sprintf("waiting %d/%d", done, n))
	return domain.StateRunning, nil
}

// Fail runs for After ticks, then fails.
type Fail struct {
	Base    `mapstructure:"-"`
	After   int    `mapstructure:"after"`
	Message string `mapstructure:"message"`
}

func (f *Fail) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	if sc.Tick() < f.After {
		return domain.StateRunning, nil
	}
	msg := f.Message
	if msg == "" {
		msg = "failed"
	}
	sc.Progress(-1, msg)
	return domain.StateFailure, nil
}

// Raise returns an execution error on its first tick.
type Raise struct {
	Base    `mapstructure:"-"`
	Message string `mapstructure:"message"`
}

func (e *Raise) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	msg := e.Message
	if msg == "" {
		msg = "skill error"
	}
	return domain.StateError, errors.New(msg)
}

// Set writes the "value" param under the "key" param of the backend.
type Set struct{ Base }

func (Set) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	key, err := paramString(sc.Params, "key")
	if err != nil {
		return domain.StateError, err
	}
	if err := sc.Backend.Set(ctx, key, sc.Params["value"]); err != nil {
		return domain.StateError, err
	}
	sc.Progress(1, "set "+key)
	return domain.StateSuccess, nil
}

// Check succeeds when the backend holds the "value" param under "key".
type Check struct{ Base }

func (Check) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	key, err := paramString(sc.Params, "key")
	if err != nil {
		return domain.StateError, err
	}
	got, err := sc.Backend.Get(ctx, key)
	if errors.Is(err, domain.ErrKeyNotFound) {
		sc.Progress(-1, key+" is not set")
		return domain.StateFailure, nil
	}
	if err != nil {
		return domain.StateError, err
	}
	// Remote backends round trip through JSON, so compare printed forms.
	if fmt.Sprint(got) != fmt.Sprint(sc.Params["value"]) {
		sc.Progress(-1, fmt.Sprintf("%s is %v", key, got))
		return domain.StateFailure, nil
	}
	return domain.StateSuccess, nil
}

// Hang blocks inside Execute until the context is cancelled. It never
// observes a preemption request.
type Hang struct{ Base }

func (Hang) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	<-ctx.Done()
	return domain.StatePreempted, nil
}
