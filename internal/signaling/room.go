package signaling

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var roomWords = [][]string{
	{"kitten", "puppy", "panda", "koala", "otter", "hedgehog", "squirrel", "dolphin", "penguin", "toucan", "narwhal", "fox"},
	{"pancake", "waffle", "ramen", "curry", "taco", "dumpling", "noodle", "falafel", "samosa", "risotto", "gnocchi", "pizza"},
	{"sunbeam", "stardust", "muffin", "bubble", "sprout", "ember", "willow", "meadow", "pixel", "biscuit", "toffee", "maple"},
	{"tiny", "happy", "sleepy", "fluffy", "sparkly", "cozy", "golden", "silver", "brave", "calm", "swift", "merry"},
	{"dragon", "unicorn", "griffin", "phoenix", "pixie", "comet", "orbit", "nebula", "canyon", "lantern", "pebble", "rocket"},
}

// NewRoomID returns a memorable identifier like "fox-taco-ember-brave".
// Nothing guarantees uniqueness; the caller shares it out of band.
func NewRoomID() (string, error) {
	lists, err := perm(len(roomWords))
	if err != nil {
		return "", err
	}

	words := make([]string, 0, 4)
	for _, li := range lists[:4] {
		i, err := randomIndex(len(roomWords[li]))
		if err != nil {
			return "", err
		}
		words = append(words, roomWords[li][i])
	}
	return strings.Join(words, "-"), nil
}

// randomIndex returns a cryptographically secure index in [0, n).
func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// perm is a Fisher-Yates shuffle of [0, n).
func perm(n int) ([]int, error) {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return nil, err
		}
		p[i], p[j] = p[j], p[i]
	}
	return p, nil
}
