package cards

import (
	"math/rand"
	"strings"
)

var (
	ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
	suits = []string{"S", "H", "D", "C"}
)

// NewDeck returns a shuffled 52 card deck. Cards are rank followed by suit,
// e.g. "10H" or "QS".
func NewDeck(rng *rand.Rand) []string {
	deck := make([]string, 0, len(ranks)*len(suits))
	for _, s := range suits {
		for _, r := range ranks {
			deck = append(deck, r+s)
		}
	}
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

func split(card string) (rank, suit string) {
	if len(card) < 2 {
		return "", ""
	}
	return card[:len(card)-1], card[len(card)-1:]
}

// Matches reports whether card can be thrown on top.
func Matches(card, top string) bool {
	r1, s1 := split(card)
	r2, s2 := split(top)
	if r1 == "" || r2 == "" {
		return false
	}
	return r1 == r2 || strings.EqualFold(s1, s2)
}

func remove(hand []string, card string) ([]string, bool) {
	for i, c := range hand {
		if c == card {
			return append(hand[:i:i], hand[i+1:]...), true
		}
	}
	return hand, false
}
