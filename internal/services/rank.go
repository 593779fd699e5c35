package services

import (
	"cmp"
	"slices"
)

// Ranked is one group produced by Rank: the summed value of every
// contribution to Key and how many contributions there were.
type Ranked[K comparable] struct {
	Key   K
	Value float64
	Count int
}

// Rank groups items by key, sums value per group and returns the groups in
// descending order of their sum, truncated to n. Equal sums keep the order
// in which their key was first seen. n <= 0 disables truncation.
func Rank[T any, K comparable](items []T, key func(T) K, value func(T) float64, n int) []Ranked[K] {
	return RankEach(items, func(t T) []K { return []K{key(t)} }, value, n)
}

// RankEach is Rank for items that contribute to several keys at once, such
// as an order contributing to every item on it. A key repeated within one
// item counts once per occurrence.
func RankEach[T any, K comparable](items []T, keys func(T) []K, value func(T) float64, n int) []Ranked[K] {
	index := make(map[K]int)
	groups := make([]Ranked[K], 0)

	for _, item := range items {
		v := value(item)
		for _, k := range keys(item) {
			i, ok := index[k]
			if !ok {
				i = len(groups)
				index[k] = i
				groups = append(groups, Ranked[K]{Key: k})
			}
			groups[i].Value += v
			groups[i].Count++
		}
	}

	slices.SortStableFunc(groups, func(a, b Ranked[K]) int {
		return cmp.Compare(b.Value, a.Value)
	})

	if n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	return groups
}
