package models

// CardValue is a single planning poker card.
type CardValue string

// The fixed estimation deck. Numeric cards aggregate; the question mark is
// displayed but excluded from numeric aggregation.
const (
	CardZero      CardValue = "0"
	CardOne       CardValue = "1"
	CardTwo       CardValue = "2"
	CardThree     CardValue = "3"
	CardFive      CardValue = "5"
	CardEight     CardValue = "8"
	CardThirteen  CardValue = "13"
	CardTwentyOne CardValue = "21"
	CardUnsure    CardValue = "?"
)

// Deck is the set of cards a vote may use, in display order.
var Deck = []CardValue{
	CardZero, CardOne, CardTwo, CardThree, CardFive,
	CardEight, CardThirteen, CardTwentyOne, CardUnsure,
}

// ValidCard reports whether value is one of the deck's cards. Free-text votes
// are rejected so aggregation stays well-defined.
func ValidCard(value string) bool {
	for _, c := range Deck {
		if string(c) == value {
			return true
		}
	}
	return false
}
