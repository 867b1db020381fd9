package chat

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var moods = []string{
	"chatty", "sleepy", "curious", "cheery", "quiet", "bold", "witty", "gentle", "merry", "calm",
	"sunny", "brave", "fuzzy", "jolly", "snappy", "mellow", "breezy", "plucky", "cozy", "lucky",
}

var critters = []string{
	"otter", "panda", "koala", "fox", "hedgehog", "robin", "parrot", "penguin", "narwhal", "beaver",
	"raccoon", "ferret", "dolphin", "toucan", "sparrow", "hamster", "lamb", "fawn", "mole", "seal",
}

var things = []string{
	"lantern", "pebble", "comet", "teacup", "biscuit", "muffin", "marble", "kettle", "button", "ember",
	"meadow", "willow", "orbit", "puddle", "thimble", "sprout", "cocoa", "breeze", "pixel", "ridge",
}

// generateRoomID returns a memorable id of the form mood-critter-thing-thing
// (e.g. "chatty-otter-lantern-comet") for which taken reports false. Callers hold
// the registry lock so the check and the insert are atomic.
func generateRoomID(taken func(string) bool) string {
	for {
		id := strings.Join([]string{
			moods[randomIndex(len(moods))],
			critters[randomIndex(len(critters))],
			things[randomIndex(len(things))],
			things[randomIndex(len(things))],
		}, "-")
		if !taken(id) {
			return id
		}
	}
}

// randomIndex returns a cryptographically secure random index in [0, n).
func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("chat: crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}
