package models

// VoteRange is the numeric spread of a vote set.
type VoteRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// VoteSummary holds the aggregates computed over an issue's numeric votes.
// Non-numeric cards are excluded; a vote set with no numeric cards
// summarizes to the zero value.
type VoteSummary struct {
	Average    float64   `json:"average"`
	MostCommon int       `json:"most_common"`
	Range      VoteRange `json:"range"`
}
