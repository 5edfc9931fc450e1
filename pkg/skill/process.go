package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// ParamEnvPrefix prefixes the environment variables carrying node params
// to a process skill.
const ParamEnvPrefix = "SKIROS_PARAM_"

// Process runs an external program for a skill. The command line comes from
// the definition only; node params reach the program as environment
// variables so that they can never inject flags.
//
// The program is started on the first tick and polled on every tick after
// that. Stdout holding a JSON object becomes node outputs, key by key; any
// other output is stored under "output". Preemption kills the program.
// Simulated runs do not start it.
type Process struct {
	Base    `mapstructure:"-"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	Dir     string            `mapstructure:"dir"`

	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	done   chan error
}

func (p *Process) OnStart(ctx context.Context, sc *domain.SkillContext) error {
	if p.Command == "" {
		return fmt.Errorf("process skill %s: no command", sc.Node.Label)
	}
	if sc.Simulated {
		return nil
	}

	p.cmd = exec.CommandContext(ctx, p.Command, p.Args...)
	p.cmd.Dir = p.Dir
	p.cmd.Env = append(p.cmd.Environ(), processEnv(p.Env, sc.Params)...)
	p.cmd.Stdout = &p.stdout
	p.cmd.Stderr = &p.stderr
	if err := p.cmd.Start(); err != nil {
		p.cmd = nil
		return fmt.Errorf("start %s: %w", p.Command, err)
	}
	p.done = make(chan error, 1)
	go func() { p.done <- p.cmd.Wait() }()
	return nil
}

func (p *Process) Execute(ctx context.Context, sc *domain.SkillContext) (domain.RunState, error) {
	if sc.Simulated {
		sc.Progress(1, "simulated "+p.Command)
		return domain.StateSuccess, nil
	}
	if p.cmd == nil {
		return domain.StateError, fmt.Errorf("process %s not started", p.Command)
	}

	select {
	case err := <-p.done:
		p.cmd = nil
		if err != nil {
			msg := strings.TrimSpace(p.stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			sc.Progress(-1, msg)
			return domain.StateFailure, nil
		}
		storeOutput(sc, strings.TrimSpace(p.stdout.String()))
		sc.Progress(1, p.Command+" finished")
		return domain.StateSuccess, nil
	default:
		sc.Progress(0, "running "+p.Command)
		return domain.StateRunning, nil
	}
}

func (p *Process) OnPreempt(ctx context.Context, sc *domain.SkillContext) domain.RunState {
	p.kill()
	sc.Progress(-1, p.Command+" killed")
	return domain.StatePreempted
}

func (p *Process) OnEnd(ctx context.Context, sc *domain.SkillContext) {
	p.kill()
}

func (p *Process) kill() {
	if p.cmd == nil {
		return
	}
	_ = p.cmd.Process.Kill()
	<-p.done
	p.cmd = nil
}

func processEnv(fixed map[string]string, params domain.Params) []string {
	env := make([]string, 0, len(fixed)+len(params))
	for k, v := range fixed {
		env = append(env, k+"="+v)
	}
	for k, v := range params {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool:
			val = fmt.Sprint(v)
		case nil:
		default:
			if data, err := json.Marshal(v); err == nil {
				val = string(data)
			} else {
				val = fmt.Sprint(v)
			}
		}
		env = append(env, ParamEnvPrefix+strings.ToUpper(k)+"="+val)
	}
	return env
}

func storeOutput(sc *domain.SkillContext, out string) {
	if strings.HasPrefix(out, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(out), &fields); err == nil {
			for k, v := range fields {
				sc.SetOutput(k, v)
			}
			return
		}
	}
	if out != "" {
		sc.SetOutput("output", out)
	}
}
