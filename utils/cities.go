package utils

import (
	"sort"
	"strings"

	"weatherbot/model"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FuzzyFindCities ranks cities whose local or canonical name fuzzily
// contains query, best match first. Each city appears at most once.
func FuzzyFindCities(query string, cities []model.City) []model.City {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var searchSpace []string
	owner := make(map[string]int)
	for i, city := range cities {
		for _, name := range []string{city.LocalName, city.CanonicalName} {
			name = strings.ToLower(name)
			if name == "" {
				continue
			}
			if _, taken := owner[name]; !taken {
				owner[name] = i
				searchSpace = append(searchSpace, name)
			}
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(query, searchSpace)
	sort.Sort(ranks)

	var (
		results []model.City
		seen    = make(map[int]bool)
	)
	for _, rank := range ranks {
		index := owner[rank.Target]
		if seen[index] {
			continue
		}
		seen[index] = true
		results = append(results, cities[index])
	}
	return results
}
