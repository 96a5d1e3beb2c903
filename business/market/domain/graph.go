package domain

import "github.com/ethereum/go-ethereum/common"

// Graph is an undirected token adjacency list. Neighbour order follows the
// order in which markets were added, which makes BFS tie-breaks deterministic.
type Graph struct {
	adj map[common.Address][]common.Address
}

func NewGraph(markets []Market) *Graph {
	g := &Graph{adj: make(map[common.Address][]common.Address)}
	for _, m := range markets {
		g.AddEdge(m.BaseAddress, m.QuoteAddress)
	}
	return g
}

// AddEdge links a and b in both directions. Repeated edges are ignored.
func (g *Graph) AddEdge(a, b common.Address) {
	if !contains(g.adj[a], b) {
		g.adj[a] = append(g.adj[a], b)
	}
	if !contains(g.adj[b], a) {
		g.adj[b] = append(g.adj[b], a)
	}
}

func (g *Graph) Neighbors(a common.Address) []common.Address {
	return g.adj[a]
}

func (g *Graph) Has(a common.Address) bool {
	_, ok := g.adj[a]
	return ok
}

// ShortestPath runs a level-order search from a. The first parent to reach a
// node wins. Returns false when b is unreachable.
func (g *Graph) ShortestPath(a, b common.Address) ([]common.Address, bool) {
	if a == b {
		return []common.Address{a}, true
	}
	if !g.Has(a) || !g.Has(b) {
		return nil, false
	}

	parent := map[common.Address]common.Address{}
	visited := map[common.Address]bool{a: true}
	queue := []common.Address{a}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range g.adj[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = cur
			if next == b {
				return walkBack(parent, a, b), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func walkBack(parent map[common.Address]common.Address, a, b common.Address) []common.Address {
	path := []common.Address{b}
	for cur := b; cur != a; {
		cur = parent[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func contains(list []common.Address, x common.Address) bool {
	for _, v := range list {
		if v == x {
			return true
		}
	}
	return false
}
