// Package feed assembles the explore feed and trending hashtags.
package feed

import (
	"regexp"
	"sort"
	"strings"
)

const (
	ExploreLimit  = 20
	TrendingScan  = 100
	TrendingLimit = 10
)

// Interleave alternates a and b starting with a; the longer list's tail is
// appended once the other runs out.
func Interleave[T any](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

type Tag struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

var hashtag = regexp.MustCompile(`#(\w+)`)

// TrendingHashtags counts every #tag occurrence across texts, lowercased,
// and returns the top limit by count, ties broken alphabetically.
func TrendingHashtags(texts []string, limit int) []Tag {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, m := range hashtag.FindAllStringSubmatch(text, -1) {
			counts["#"+strings.ToLower(m[1])]++
		}
	}

	tags := make([]Tag, 0, len(counts))
	for tag, n := range counts {
		tags = append(tags, Tag{Tag: tag, Count: n})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Tag < tags[j].Tag
	})
	if limit > 0 && len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}
