// Package icemaze is a grid crossing puzzle: walk from the start corner to
// the goal corner over ice without stepping into water.
package icemaze

import (
	_ "embed"
	"fmt"
	"sort"

	"envforge.ai/internal/sim/engine"
	"envforge.ai/internal/sim/reward"
	"envforge.ai/internal/sim/rng"
	"envforge.ai/internal/sim/schema"
	"envforge.ai/internal/sim/state"
	"envforge.ai/internal/sim/tuning"
	"envforge.ai/internal/sim/validate"
	"envforge.ai/internal/sim/worldgen"
)

const Name = "icemaze"

const (
	Ice   = "ice"
	Water = "water"

	StatusPlaying = "playing"
	StatusArrived = "arrived"
	StatusFell    = "fell"
)

const (
	EventReachGoal   = "reach_goal"
	EventExploreTile = "explore_new_tile"
	EventFall        = "fall_in_water"
	EventBump        = "bump_wall"
)

//go:embed schema.yaml
var schemaYAML []byte

var moves = map[string]state.Pos{
	"north": {X: 0, Y: -1},
	"south": {X: 0, Y: 1},
	"east":  {X: 1, Y: 0},
	"west":  {X: -1, Y: 0},
}

type Env struct {
	cfg tuning.IceMaze
	sc  *schema.Schema
}

func New(cfg tuning.IceMaze) (*Env, error) {
	sc, err := schema.Parse(schemaYAML)
	if err != nil {
		return nil, err
	}
	tiles := sc.Namespaces["world"]["tiles"]
	tiles.Rows, tiles.Cols = cfg.Height, cfg.Width
	sc.Namespaces["world"]["tiles"] = tiles
	if err := sc.Check(); err != nil {
		return nil, err
	}
	return &Env{cfg: cfg, sc: sc}, nil
}

func (e *Env) Name() string             { return Name }
func (e *Env) Schema() *schema.Schema   { return e.sc }
func (e *Env) Rewards() reward.Schedule { return e.sc.Rewards }

func (e *Env) Actions() []engine.ActionSpec {
	return []engine.ActionSpec{{
		Name:     "move",
		Required: []string{"direction"},
		Params: map[string]engine.ParamSpec{
			"direction": {Type: engine.ParamString, Enum: []string{"north", "south", "east", "west"}},
		},
	}}
}

func (e *Env) index(p state.Pos) int { return p.Y*e.cfg.Width + p.X }

func (e *Env) Pipeline() worldgen.Pipeline {
	tpl := state.New()
	tpl.Set(state.NSGlobals, state.KeyEnv, Name)
	tpl.Set(state.NSGlobals, state.KeyMaxSteps, e.cfg.MaxSteps)
	tpl.Set(state.NSGlobals, state.KeyRemainingSteps, e.cfg.MaxSteps)
	tpl.Set(state.NSGlobals, state.KeyStepsTaken, 0)
	return worldgen.Pipeline{
		Env:      Name,
		Template: tpl,
		Steps: []worldgen.Step{
			{Name: "init_from_template", Owns: []string{"globals.seed"}, Run: initFromTemplate},
			{Name: "place_structures", Owns: []string{"world.start", "world.goal"}, Run: e.placeStructures},
			{Name: "populate_entities", Owns: []string{"world.tiles"}, Run: e.populateEntities},
			{Name: "assign_initial_attributes", Owns: []string{"agent.status", "agent.visited"}, Run: e.assignInitialAttributes},
			{Name: "place_agent", Owns: []string{"agent.pos"}, Run: placeAgent},
		},
	}
}

func initFromTemplate(st *state.State, rs *rng.Stream) error {
	st.Set(state.NSGlobals, state.KeySeed, rs.Seed())
	return nil
}

func (e *Env) placeStructures(st *state.State, rs *rng.Stream) error {
	st.SetPos("world", "start", state.Pos{X: 0, Y: 0})
	st.SetPos("world", "goal", state.Pos{X: e.cfg.Width - 1, Y: e.cfg.Height - 1})
	return nil
}

// populateEntities carves a random monotone ice path from start to goal,
// then fills the remaining cells row-major with ice or water.
func (e *Env) populateEntities(st *state.State, rs *rng.Stream) error {
	start, _ := st.Pos("world", "start")
	goal, _ := st.Pos("world", "goal")
	dx, dy := goal.X-start.X, goal.Y-start.Y
	if dx+dy > e.cfg.MaxSteps {
		return fmt.Errorf("%w: corridor of %d moves exceeds max_steps %d", worldgen.ErrUnsatisfied, dx+dy, e.cfg.MaxSteps)
	}

	onPath := map[state.Pos]bool{start: true}
	cur := start
	for cur != goal {
		right := goal.X - cur.X
		down := goal.Y - cur.Y
		if down == 0 || (right > 0 && rs.Intn(right+down) < right) {
			cur.X++
		} else {
			cur.Y++
		}
		onPath[cur] = true
	}

	ice := 1000 - e.cfg.WaterPermille
	grid := make([][]string, e.cfg.Height)
	for y := range grid {
		grid[y] = make([]string, e.cfg.Width)
		for x := range grid[y] {
			if onPath[state.Pos{X: x, Y: y}] || rs.Chance(ice) {
				grid[y][x] = Ice
			} else {
				grid[y][x] = Water
			}
		}
	}
	st.Set("world", "tiles", grid)
	return nil
}

func (e *Env) assignInitialAttributes(st *state.State, rs *rng.Stream) error {
	start, _ := st.Pos("world", "start")
	st.Set(state.NSAgent, "status", StatusPlaying)
	st.Set(state.NSAgent, "visited", []int{e.index(start)})
	return nil
}

func placeAgent(st *state.State, rs *rng.Stream) error {
	start, _ := st.Pos("world", "start")
	st.SetPos(state.NSAgent, "pos", start)
	return nil
}

// Apply moves the agent one cell. Walking off the grid is a wasted move.
func (e *Env) Apply(st *state.State, a engine.Action) error {
	dir, _ := engine.StringParam(a, "direction")
	d, ok := moves[dir]
	if !ok {
		return fmt.Errorf("%w: direction %q", engine.ErrInvalidParams, dir)
	}
	pos, _ := st.Pos(state.NSAgent, "pos")
	next := state.Pos{X: pos.X + d.X, Y: pos.Y + d.Y}
	if next.X < 0 || next.Y < 0 || next.X >= e.cfg.Width || next.Y >= e.cfg.Height {
		return nil
	}
	st.SetPos(state.NSAgent, "pos", next)

	visited, _ := st.Ints(state.NSAgent, "visited")
	idx := e.index(next)
	i := sort.SearchInts(visited, idx)
	if i == len(visited) || visited[i] != idx {
		visited = append(visited, 0)
		copy(visited[i+1:], visited[i:])
		visited[i] = idx
		st.Set(state.NSAgent, "visited", visited)
	}

	grid, _ := st.StringGrid("world", "tiles")
	goal, _ := st.Pos("world", "goal")
	switch {
	case grid[next.Y][next.X] == Water:
		st.Set(state.NSAgent, "status", StatusFell)
	case next == goal:
		st.Set(state.NSAgent, "status", StatusArrived)
	}
	return nil
}

func (e *Env) Events(prev *state.State, a engine.Action, next *state.State) []string {
	var ev []string
	before, _ := prev.Pos(state.NSAgent, "pos")
	after, _ := next.Pos(state.NSAgent, "pos")
	if before == after {
		ev = append(ev, EventBump)
	}
	pv, _ := prev.Len(state.NSAgent, "visited")
	nv, _ := next.Len(state.NSAgent, "visited")
	if nv > pv {
		ev = append(ev, EventExploreTile)
	}
	switch status, _ := next.String(state.NSAgent, "status"); status {
	case StatusArrived:
		ev = append(ev, EventReachGoal)
	case StatusFell:
		ev = append(ev, EventFall)
	}
	return ev
}

func (e *Env) Status(st *state.State) engine.Status {
	switch status, _ := st.String(state.NSAgent, "status"); status {
	case StatusArrived:
		return engine.StatusSuccess
	case StatusFell:
		return engine.StatusFailure
	}
	return engine.StatusPlaying
}

// Solve returns a shortest move sequence from the agent to the goal.
func (e *Env) Solve(st *state.State) (engine.Trajectory, error) {
	grid, _ := st.StringGrid("world", "tiles")
	start, _ := st.Pos(state.NSAgent, "pos")
	goal, _ := st.Pos("world", "goal")
	path := validate.ShortestPath(grid, func(c string) bool { return c == Ice }, start, goal)
	if path == nil {
		return nil, fmt.Errorf("icemaze: goal unreachable")
	}
	traj := make(engine.Trajectory, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		traj = append(traj, engine.Action{Name: "move", Params: map[string]any{"direction": validate.Direction(path[i-1], path[i])}})
	}
	return traj, nil
}
