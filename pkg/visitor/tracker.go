package visitor

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

const maxSamples = 1024

// ParamSample is a tracked parameter value that changed during a pass.
type ParamSample struct {
	Task  string    `json:"task"`
	Label string    `json:"label"`
	Key   string    `json:"key"`
	Value any       `json:"value"`
	Tick  int       `json:"tick"`
	Time  time.Time `json:"time"`
}

type trackedPath struct {
	label string
	keys  []string
}

type tracker struct {
	logger *slog.Logger

	mu    sync.Mutex
	paths []trackedPath
	last  map[string]any
	log   []ParamSample
}

func newTracker(logger *slog.Logger) *tracker {
	return &tracker{logger: logger, last: make(map[string]any)}
}

func (t *tracker) add(label string, keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, trackedPath{label: label, keys: keys})
}

func (t *tracker) sample(tree *domain.TaskTree) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.paths) == 0 {
		return
	}

	now := time.Now()
	for _, p := range t.paths {
		n := tree.Lookup(p.label)
		if n == nil {
			continue
		}
		keys := p.keys
		if len(keys) == 0 {
			keys = n.Params.Keys()
			sort.Strings(keys)
		}
		for _, k := range keys {
			v, ok := n.Params[k]
			id := tree.Label() + "/" + p.label + "." + k
			prev, seen := t.last[id]
			if !ok || (seen && reflect.DeepEqual(prev, v)) {
				continue
			}
			t.last[id] = domain.CloneValue(v)
			t.log = append(t.log, ParamSample{
				Task:  tree.Label(),
				Label: p.label,
				Key:   k,
				Value: domain.CloneValue(v),
				Tick:  n.Ticks,
				Time:  now,
			})
			t.logger.Debug("tracked param changed", "task", tree.Label(), "label", p.label, "key", k, "value", v)
		}
	}
	if over := len(t.log) - maxSamples; over > 0 {
		t.log = append([]ParamSample(nil), t.log[over:]...)
	}
}

func (t *tracker) samples() []ParamSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ParamSample(nil), t.log...)
}
