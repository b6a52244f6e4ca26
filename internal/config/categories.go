package config

// CategoryWeights orders command categories in /help.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎵 Playback":     10,
	"📜 Queue":        20,
	"📻 Radio":        30,
	"🔊 Voice":        40,
}
