package poker

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/rfontan/pointly/go/internal/models"
)

// Summarize computes the aggregates for a vote set. It is a pure function and
// is recomputed server-side before every broadcast; whatever the server emits
// is the authoritative copy.
//
// Votes that do not parse as integers (the "?" card) are skipped. With no
// numeric votes at all the zero summary is returned.
func Summarize(votes map[uuid.UUID]models.Vote) models.VoteSummary {
	values := make([]int, 0, len(votes))
	for _, vote := range votes {
		n, err := strconv.Atoi(vote.Value)
		if err != nil {
			continue
		}
		values = append(values, n)
	}
	if len(values) == 0 {
		return models.VoteSummary{}
	}

	sum := 0
	min, max := values[0], values[0]
	freq := make(map[int]int, len(values))
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		freq[v]++
	}

	return models.VoteSummary{
		Average:    float64(sum) / float64(len(values)),
		MostCommon: mostCommon(freq),
		Range:      models.VoteRange{Min: min, Max: max},
	}
}

// mostCommon picks the value with the highest frequency. Candidates are sorted
// ascending by value, then stably by ascending frequency, and the last element
// wins: ties between equally frequent values resolve toward the larger value.
// The rule is arbitrary but deterministic.
func mostCommon(freq map[int]int) int {
	values := make([]int, 0, len(freq))
	for v := range freq {
		values = append(values, v)
	}
	sort.Ints(values)
	sort.SliceStable(values, func(a, b int) bool {
		return freq[values[a]] < freq[values[b]]
	})
	return values[len(values)-1]
}
