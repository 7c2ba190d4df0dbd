package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"envforge.ai/internal/sim/logic/codec"
)

type Tuning struct {
	Generation Generation `yaml:"generation"`
	Audit      Audit      `yaml:"audit"`
	Envs       Envs       `yaml:"envs"`
	Runtime    Runtime    `yaml:"runtime"`
}

type Generation struct {
	// StepRetries bounds re-runs of one pipeline step after an unsatisfied
	// postcondition.
	StepRetries int `yaml:"step_retries"`
	// SeedAttempts bounds how many derived seeds the forge tries per request.
	SeedAttempts int `yaml:"seed_attempts"`
}

type Audit struct {
	DominanceRatio float64 `yaml:"dominance_ratio"`
	ExploitRatio   float64 `yaml:"exploit_ratio"`
}

type Envs struct {
	IceMaze IceMaze `yaml:"icemaze"`
	Memory  Memory  `yaml:"memory"`
	Cipher  Cipher  `yaml:"cipher"`
}

type IceMaze struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	MaxSteps      int `yaml:"max_steps"`
	WaterPermille int `yaml:"water_permille"`
}

type Memory struct {
	Slots    int    `yaml:"slots"`
	MaxSteps int    `yaml:"max_steps"`
	Alphabet string `yaml:"alphabet"`
}

type Cipher struct {
	MaxSteps int    `yaml:"max_steps"`
	Codec    string `yaml:"codec"`
	MinLen   int    `yaml:"min_len"`
	MaxLen   int    `yaml:"max_len"`
}

type Runtime struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
	Workers int    `yaml:"workers"`
}

func Defaults() Tuning {
	return Tuning{
		Generation: Generation{StepRetries: 8, SeedAttempts: 16},
		Audit:      Audit{DominanceRatio: 0.8, ExploitRatio: 0.5},
		Envs: Envs{
			IceMaze: IceMaze{Width: 8, Height: 8, MaxSteps: 30, WaterPermille: 350},
			Memory:  Memory{Slots: 16, MaxSteps: 24, Alphabet: "ABCDEFGHIJKLMNOP"},
			Cipher:  Cipher{MaxSteps: 6, Codec: "caesar", MinLen: 4, MaxLen: 8},
		},
		Runtime: Runtime{Addr: ":8090", DataDir: "data/levels", Workers: 4},
	}
}

// Load overlays the YAML file on Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	g := t.Generation
	if g.StepRetries <= 0 || g.SeedAttempts <= 0 {
		return fmt.Errorf("generation: step_retries and seed_attempts must be positive")
	}
	a := t.Audit
	if a.DominanceRatio <= 0 || a.DominanceRatio > 1 {
		return fmt.Errorf("audit: dominance_ratio %v outside (0,1]", a.DominanceRatio)
	}
	if a.ExploitRatio <= 0 || a.ExploitRatio > 1 {
		return fmt.Errorf("audit: exploit_ratio %v outside (0,1]", a.ExploitRatio)
	}

	im := t.Envs.IceMaze
	if im.Width < 2 || im.Height < 2 {
		return fmt.Errorf("envs.icemaze: grid must be at least 2x2")
	}
	if im.MaxSteps <= 0 {
		return fmt.Errorf("envs.icemaze: max_steps must be positive")
	}
	if im.WaterPermille < 0 || im.WaterPermille > 1000 {
		return fmt.Errorf("envs.icemaze: water_permille %d outside [0,1000]", im.WaterPermille)
	}

	m := t.Envs.Memory
	if m.Slots < 2 || m.Slots%2 != 0 {
		return fmt.Errorf("envs.memory: slots must be even and >= 2")
	}
	if len(m.Alphabet) < m.Slots/2 {
		return fmt.Errorf("envs.memory: alphabet has %d symbols, need %d", len(m.Alphabet), m.Slots/2)
	}
	if m.MaxSteps <= 0 {
		return fmt.Errorf("envs.memory: max_steps must be positive")
	}

	c := t.Envs.Cipher
	if _, ok := codec.Lookup(c.Codec); !ok {
		return fmt.Errorf("envs.cipher: unknown codec %q (have %v)", c.Codec, codec.Names())
	}
	if c.MinLen <= 0 || c.MaxLen < c.MinLen {
		return fmt.Errorf("envs.cipher: need 0 < min_len <= max_len")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("envs.cipher: max_steps must be positive")
	}

	if t.Runtime.Workers <= 0 {
		return fmt.Errorf("runtime: workers must be positive")
	}
	return nil
}
