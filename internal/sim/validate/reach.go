package validate

import "envforge.ai/internal/sim/state"

// Neighbour order is fixed so the returned path is deterministic.
var steps4 = [4]state.Pos{{X: 0, Y: -1}, {X: 0, Y: 1}, {X: 1, Y: 0}, {X: -1, Y: 0}}

// ShortestPath runs a 4-connected breadth-first search over grid (indexed
// grid[y][x]) restricted to cells accepted by passable. It returns the cells
// from start to goal inclusive, or nil when goal is unreachable. A start equal
// to goal yields a single-cell path.
func ShortestPath(grid [][]string, passable func(string) bool, start, goal state.Pos) []state.Pos {
	in := func(p state.Pos) bool {
		return p.Y >= 0 && p.Y < len(grid) && p.X >= 0 && p.X < len(grid[p.Y])
	}
	if !in(start) || !in(goal) || !passable(grid[start.Y][start.X]) || !passable(grid[goal.Y][goal.X]) {
		return nil
	}
	if start == goal {
		return []state.Pos{start}
	}

	prev := map[state.Pos]state.Pos{start: start}
	queue := []state.Pos{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range steps4 {
			nb := state.Pos{X: cur.X + d.X, Y: cur.Y + d.Y}
			if !in(nb) || !passable(grid[nb.Y][nb.X]) {
				continue
			}
			if _, seen := prev[nb]; seen {
				continue
			}
			prev[nb] = cur
			if nb == goal {
				return unwind(prev, start, goal)
			}
			queue = append(queue, nb)
		}
	}
	return nil
}

func unwind(prev map[state.Pos]state.Pos, start, goal state.Pos) []state.Pos {
	var rev []state.Pos
	for p := goal; ; p = prev[p] {
		rev = append(rev, p)
		if p == start {
			break
		}
	}
	out := make([]state.Pos, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

// Direction names the move that takes a to its 4-neighbour b.
func Direction(a, b state.Pos) string {
	switch {
	case b.Y == a.Y-1 && b.X == a.X:
		return "north"
	case b.Y == a.Y+1 && b.X == a.X:
		return "south"
	case b.X == a.X+1 && b.Y == a.Y:
		return "east"
	case b.X == a.X-1 && b.Y == a.Y:
		return "west"
	}
	return ""
}
