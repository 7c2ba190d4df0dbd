package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	doc := "envs:\n  icemaze:\n    max_steps: 40\naudit:\n  exploit_ratio: 0.4\n"
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Envs.IceMaze.MaxSteps != 40 || tu.Envs.IceMaze.Width != 8 {
		t.Fatalf("icemaze = %+v", tu.Envs.IceMaze)
	}
	if tu.Audit.ExploitRatio != 0.4 || tu.Audit.DominanceRatio != 0.8 {
		t.Fatalf("audit = %+v", tu.Audit)
	}
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"odd slots":  "envs:\n  memory:\n    slots: 15\n",
		"codec":      "envs:\n  cipher:\n    codec: rot47\n",
		"ratio":      "audit:\n  dominance_ratio: 1.5\n",
		"lens":       "envs:\n  cipher:\n    min_len: 9\n",
		"bad yaml":   "envs: [",
		"water":      "envs:\n  icemaze:\n    water_permille: 1200\n",
		"small grid": "envs:\n  icemaze:\n    width: 1\n",
	}
	for name, doc := range cases {
		p := filepath.Join(dir, name+".yaml")
		os.WriteFile(p, []byte(doc), 0o644)
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
