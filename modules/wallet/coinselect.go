package wallet

import (
	"math/rand"
	"sort"

	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// CENT is the domain constant used by the coin selector's single-output and
// no-change-below-a-cent heuristics.
const CENT = 1_000_000

// maxSelectionTrials bounds the stochastic subset-sum refinement.
const maxSelectionTrials = 1000

// Rand is the subset of math/rand.Rand's API coin selection needs. Tests
// inject a deterministic source so selection outcomes are reproducible.
type Rand interface {
	Intn(n int) int
}

// coin is one candidate input for spending: its coordinates in the wallet's
// tx index, its output's value, and whether it belongs to a from-me
// transaction (used to pick the confirmation threshold it must clear).
type coin struct {
	Out     modules.OutPoint
	Value   int64
	FromMe  bool
	Address crypto.Address
}

// confirmationThreshold is one (cMine, cTheirs) tier the top-level
// selection tries in order.
type confirmationThreshold struct {
	CMine   int32
	CTheirs int32
}

var selectionThresholds = []confirmationThreshold{
	{CMine: 1, CTheirs: 6},
	{CMine: 1, CTheirs: 1},
	{CMine: 0, CTheirs: 1},
}

// eligibleCoins filters candidates to those unspent and confirmed to at
// least the depth the coin's origin (from-me or received) requires under
// threshold. Ownership, finality and coinbase maturity are checked when the
// candidate list is built (Wallet.spendableCoins).
func eligibleCoins(chain modules.Chain, all []coin, threshold confirmationThreshold) []coin {
	var out []coin
	for _, c := range all {
		if chain.IsSpent(c.Out) {
			continue
		}
		depth := chain.Depth(c.Out.Hash)
		var required int32
		if c.FromMe {
			required = threshold.CMine
		} else {
			required = threshold.CTheirs
		}
		if depth < required {
			continue
		}
		out = append(out, c)
	}
	return out
}

// selectCoins runs the selection algorithm against one confirmation
// threshold tier, returning the chosen coins and their total value. ok is
// false if no combination reaches target.
func selectCoins(rng Rand, candidates []coin, target int64) (selected []coin, total int64, ok bool) {
	if target <= 0 {
		return nil, 0, true
	}

	shuffled := make([]coin, len(candidates))
	copy(shuffled, candidates)
	rand.New(rngSource{rng}).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for _, c := range shuffled {
		if c.Value == target {
			return []coin{c}, c.Value, true
		}
	}

	var smalls []coin
	var lowerTotal int64
	var haveLarger bool
	var lowestLarger coin

	for _, c := range shuffled {
		if c.Value < target+CENT {
			smalls = append(smalls, c)
			lowerTotal += c.Value
		} else if !haveLarger || c.Value < lowestLarger.Value {
			lowestLarger = c
			haveLarger = true
		}
	}

	if lowerTotal == target || lowerTotal == target+CENT {
		return smalls, lowerTotal, true
	}

	if lowerTotal < target+boolToInt64(haveLarger)*CENT {
		if haveLarger {
			return []coin{lowestLarger}, lowestLarger.Value, true
		}
		return nil, 0, false
	}

	effectiveTarget := target
	if lowerTotal >= target+CENT {
		effectiveTarget = target + CENT
	}

	best, bestTotal, found := stochasticSubsetSum(rng, smalls, effectiveTarget)

	if haveLarger && found {
		if absDiff(lowestLarger.Value, target) <= absDiff(bestTotal, target) {
			return []coin{lowestLarger}, lowestLarger.Value, true
		}
		return best, bestTotal, true
	}
	if haveLarger {
		return []coin{lowestLarger}, lowestLarger.Value, true
	}
	if found {
		return best, bestTotal, true
	}
	return nil, 0, false
}

// stochasticSubsetSum runs maxSelectionTrials trials, each two passes over
// smalls sorted descending (pass 0 tosses a coin to include each item, pass
// 1 flips the items excluded by pass 0), stopping a trial as soon as its
// running total reaches target. The smallest total across all trials that
// reaches target is kept.
func stochasticSubsetSum(rng Rand, smalls []coin, target int64) ([]coin, int64, bool) {
	sorted := make([]coin, len(smalls))
	copy(sorted, smalls)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var best []coin
	var bestTotal int64
	found := false

	for trial := 0; trial < maxSelectionTrials; trial++ {
		included := make([]bool, len(sorted))
		var total int64
		reached := false

		for pass := 0; pass < 2 && !reached; pass++ {
			for i, c := range sorted {
				var include bool
				if pass == 0 {
					include = rng.Intn(2) == 1
				} else {
					include = !included[i]
				}
				if !include {
					continue
				}
				included[i] = true
				total += c.Value
				if total >= target {
					reached = true
					break
				}
			}
		}

		if reached && (!found || total < bestTotal) {
			found = true
			bestTotal = total
			best = collectIncluded(sorted, included)
		}
	}

	return best, bestTotal, found
}

func collectIncluded(sorted []coin, included []bool) []coin {
	var out []coin
	for i, c := range sorted {
		if included[i] {
			out = append(out, c)
		}
	}
	return out
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// selectCoinsForTarget is the top-level entry point: it tries each
// confirmation threshold tier in turn ((1,6) -> (1,1) -> (0,1)) against the
// full candidate set, returning the first tier that can fund target.
func selectCoinsForTarget(chain modules.Chain, rng Rand, all []coin, target int64) ([]coin, int64, error) {
	for _, threshold := range selectionThresholds {
		candidates := eligibleCoins(chain, all, threshold)
		selected, total, ok := selectCoins(rng, candidates, target)
		if ok {
			return selected, total, nil
		}
	}
	return nil, 0, ErrInsufficientFunds
}

// rngSource adapts the narrow Rand interface to math/rand.Source so
// rand.New(...).Shuffle can be used for the initial candidate shuffle while
// every other draw in the algorithm still goes through the same injected
// Rand.
type rngSource struct {
	r Rand
}

func (s rngSource) Int63() int64 {
	return int64(s.r.Intn(1<<62)) | (int64(s.r.Intn(2)) << 62)
}

func (s rngSource) Seed(int64) {}
