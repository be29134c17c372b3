package consolidation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/6529-collections/tdh-indexer/pkg/model"
)

// MaxClusterSize bounds how many wallets one identity cluster may hold.
const MaxClusterSize = 3

// ClusterFor returns the identity cluster of the given wallet: either its
// multi-wallet clique or the wallet alone. Candidate edges are gathered by
// bounded traversal of confirmed edges, then reduced with a recency-ordered
// clique-growth pass — a wallet is admitted only if it has a confirmed edge
// to every current member, not merely to one of them.
func (r *Resolver) ClusterFor(ctx context.Context, wallet string) ([]string, error) {
	w := strings.ToLower(wallet)

	edges, err := r.candidateEdges(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return []string{w}, nil
	}

	clusters := growCliques(edges)
	for _, cluster := range clusters {
		for _, member := range cluster {
			if member == w {
				return cluster, nil
			}
		}
	}
	return []string{w}, nil
}

// candidateEdges collects the transitive closure of confirmed edges
// reachable from the wallet.
func (r *Resolver) candidateEdges(ctx context.Context, wallet string) ([]model.ConsolidationEdge, error) {
	visited := map[string]bool{wallet: true}
	frontier := []string{wallet}
	seen := map[string]bool{}
	var edges []model.ConsolidationEdge

	for len(frontier) > 0 {
		batch, err := r.edges.ConfirmedEdgesTouching(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("fetch confirmed edges: %w", err)
		}
		frontier = frontier[:0]
		for _, edge := range batch {
			id := edge.WalletA + ":" + edge.WalletB
			if seen[id] {
				continue
			}
			seen[id] = true
			edges = append(edges, edge)
			for _, member := range []string{edge.WalletA, edge.WalletB} {
				if !visited[member] {
					visited[member] = true
					frontier = append(frontier, member)
				}
			}
		}
	}
	return edges, nil
}

// growCliques partitions the wallets touched by the candidate edges into
// cliques. Edges are processed most recent first; each seeds a cluster with
// its two wallets, then candidates are admitted only while they hold a
// confirmed edge to every member, up to MaxClusterSize. Wallets consumed by
// an earlier cluster are not reconsidered; leftovers become singletons.
func growCliques(edges []model.ConsolidationEdge) [][]string {
	sorted := make([]model.ConsolidationEdge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Block != sorted[j].Block {
			return sorted[i].Block > sorted[j].Block
		}
		if sorted[i].WalletA != sorted[j].WalletA {
			return sorted[i].WalletA < sorted[j].WalletA
		}
		return sorted[i].WalletB < sorted[j].WalletB
	})

	connected := map[string]bool{}
	recency := map[string]int{}
	var wallets []string
	for i, edge := range sorted {
		connected[pairKey(edge.WalletA, edge.WalletB)] = true
		for _, w := range []string{edge.WalletA, edge.WalletB} {
			if _, ok := recency[w]; !ok {
				recency[w] = i
				wallets = append(wallets, w)
			}
		}
	}

	consumed := map[string]bool{}
	var clusters [][]string

	for _, edge := range sorted {
		if consumed[edge.WalletA] || consumed[edge.WalletB] {
			continue
		}
		cluster := []string{edge.WalletA, edge.WalletB}
		consumed[edge.WalletA] = true
		consumed[edge.WalletB] = true

		for len(cluster) < MaxClusterSize {
			admitted := ""
			for _, candidate := range wallets {
				if consumed[candidate] {
					continue
				}
				if connectedToAll(connected, candidate, cluster) {
					admitted = candidate
					break
				}
			}
			if admitted == "" {
				break
			}
			cluster = append(cluster, admitted)
			consumed[admitted] = true
		}

		sort.Strings(cluster)
		clusters = append(clusters, cluster)
	}

	// Wallets touched by an edge but never admitted become singletons.
	for _, w := range wallets {
		if !consumed[w] {
			clusters = append(clusters, []string{w})
		}
	}
	return clusters
}

func connectedToAll(connected map[string]bool, candidate string, cluster []string) bool {
	for _, member := range cluster {
		if !connected[pairKey(candidate, member)] {
			return false
		}
	}
	return true
}

func pairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}
