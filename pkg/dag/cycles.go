package dag

// Cycles enumerates every elementary cycle in the graph using Johnson's
// algorithm, so that a rejected write can report all cycles at once rather
// than just the first one a DFS happens to find.
func (g *Graph) Cycles() [][]NodeID {
	nodes := g.Nodes()
	index := make(map[NodeID]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	n := len(nodes)
	adj := make([][]int, n)
	for i, id := range nodes {
		for _, succ := range g.successors[id] {
			adj[i] = append(adj[i], index[succ])
		}
	}

	var cycles [][]int
	for s := 0; s < n; s++ {
		blocked := make([]bool, n)
		blockedMap := make(map[int]map[int]bool, n)
		var stack []int

		var unblock func(int)
		unblock = func(u int) {
			blocked[u] = false
			for w := range blockedMap[u] {
				delete(blockedMap[u], w)
				if blocked[w] {
					unblock(w)
				}
			}
		}

		var circuit func(v int) bool
		circuit = func(v int) bool {
			found := false
			stack = append(stack, v)
			blocked[v] = true

			for _, w := range adj[v] {
				if w < s {
					continue // only consider the subgraph induced by nodes >= s
				}
				if w == s {
					cyc := make([]int, len(stack))
					copy(cyc, stack)
					cycles = append(cycles, cyc)
					found = true
				} else if !blocked[w] {
					if circuit(w) {
						found = true
					}
				}
			}

			if found {
				unblock(v)
			} else {
				for _, w := range adj[v] {
					if w < s {
						continue
					}
					if blockedMap[w] == nil {
						blockedMap[w] = make(map[int]bool)
					}
					blockedMap[w][v] = true
				}
			}

			stack = stack[:len(stack)-1]
			return found
		}

		circuit(s)
	}

	out := make([][]NodeID, 0, len(cycles))
	for _, cyc := range cycles {
		ids := make([]NodeID, len(cyc))
		for i, idx := range cyc {
			ids[i] = nodes[idx]
		}
		out = append(out, ids)
	}
	return out
}
