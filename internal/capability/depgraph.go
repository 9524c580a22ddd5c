package capability

// Plan is the deterministic, dependency-respecting start order for the
// enabled capabilities. Identical (registry, activation) inputs always yield
// an identical plan.
type Plan struct {
	order  []string
	levels [][]string
}

// Order returns the total start order.
func (p *Plan) Order() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Levels groups the plan by topological depth. Capabilities within one level
// have no dependency edge between them, directly or transitively, and may be
// started concurrently.
func (p *Plan) Levels() [][]string {
	out := make([][]string, len(p.levels))
	for i, level := range p.levels {
		out[i] = make([]string, len(level))
		copy(out[i], level)
	}
	return out
}

// ResolvePlan restricts the registry to enabled capabilities, validates the
// dependency graph, and computes the start order.
//
// Validation order: an enabled capability with a disabled dependency fails
// with DisabledDependencyError; a cycle among enabled capabilities fails with
// CyclicDependencyError. Ties in the topological sort are broken by manifest
// declaration order so resolution is reproducible run over run.
func ResolvePlan(reg *Registry, activation Activation) (*Plan, error) {
	specs := reg.Specs()

	enabled := make([]bool, len(specs))
	for i, spec := range specs {
		enabled[i] = activation.Enabled(spec.Name)
	}

	for i, spec := range specs {
		if !enabled[i] {
			continue
		}
		for _, dep := range spec.DependsOn {
			j, _ := reg.indexOf(dep)
			if !enabled[j] {
				return nil, &DisabledDependencyError{Capability: spec.Name, Dependency: dep}
			}
		}
	}

	// Dense adjacency over declaration indices. deps[i] holds the indices a
	// capability waits on; indegree counts unresolved predecessors.
	deps := make([][]int, len(specs))
	indegree := make([]int, len(specs))
	for i, spec := range specs {
		if !enabled[i] {
			continue
		}
		for _, dep := range spec.DependsOn {
			j, _ := reg.indexOf(dep)
			deps[i] = append(deps[i], j)
		}
		indegree[i] = len(deps[i])
	}

	if cycle := findCycle(specs, enabled, deps); cycle != nil {
		return nil, &CyclicDependencyError{Path: cycle}
	}

	// Kahn's algorithm. Among ready nodes, the lowest declaration index is
	// always selected first.
	dependents := make([][]int, len(specs))
	for i := range specs {
		for _, j := range deps[i] {
			dependents[j] = append(dependents[j], i)
		}
	}

	depth := make([]int, len(specs))
	done := make([]bool, len(specs))
	order := make([]int, 0, len(specs))
	for {
		next := -1
		for i := range specs {
			if enabled[i] && !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			break
		}
		done[next] = true
		order = append(order, next)
		for _, dep := range deps[next] {
			if depth[dep]+1 > depth[next] {
				depth[next] = depth[dep] + 1
			}
		}
		for _, child := range dependents[next] {
			indegree[child]--
		}
	}

	plan := &Plan{order: make([]string, len(order))}
	maxDepth := -1
	for k, i := range order {
		plan.order[k] = specs[i].Name
		if depth[i] > maxDepth {
			maxDepth = depth[i]
		}
	}
	plan.levels = make([][]string, maxDepth+1)
	for _, i := range order {
		d := depth[i]
		plan.levels[d] = append(plan.levels[d], specs[i].Name)
	}

	return plan, nil
}

// findCycle runs a depth-first traversal along dependency edges and returns
// the first cycle found, with the entry name repeated at the end. Roots are
// visited in declaration order.
func findCycle(specs []Spec, enabled []bool, deps [][]int) []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(specs))
	var stack []int

	var visit func(i int) []string
	visit = func(i int) []string {
		color[i] = gray
		stack = append(stack, i)
		for _, j := range deps[i] {
			switch color[j] {
			case gray:
				// Slice the stack from the first occurrence of j to close
				// the cycle.
				start := 0
				for k, s := range stack {
					if s == j {
						start = k
						break
					}
				}
				path := make([]string, 0, len(stack)-start+1)
				for _, s := range stack[start:] {
					path = append(path, specs[s].Name)
				}
				return append(path, specs[j].Name)
			case white:
				if path := visit(j); path != nil {
					return path
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}

	for i := range specs {
		if enabled[i] && color[i] == white {
			if path := visit(i); path != nil {
				return path
			}
		}
	}
	return nil
}
