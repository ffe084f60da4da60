package utils

import (
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const UNKNOWN_CLIENT = "unknown"

// Default graffiti of each consensus client contains its name
var builtinGraffitiHints = map[string]string{
	"lighthouse": "lighthouse",
	"teku":       "teku",
	"prysm":      "prysm",
	"nimbus":     "nimbus",
	"lodestar":   "lodestar",
	"grandine":   "grandine",
}

// GraffitiClient guesses the client that produced a block from its graffiti. Extra
// substring -> client pairs can be set under `graffiti_hints` in config.yaml.
func GraffitiClient(graffiti string) string {
	g := strings.ToLower(graffiti)
	if g == "" {
		return UNKNOWN_CLIENT
	}

	hints := make(map[string]string, len(builtinGraffitiHints))
	for k, v := range builtinGraffitiHints {
		hints[k] = v
	}
	for k, v := range viper.GetStringMapString("graffiti_hints") {
		hints[strings.ToLower(k)] = v
	}

	// Longest hint first so that "teku-fork" wins over "teku"
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(g, k) {
			return hints[k]
		}
	}
	return UNKNOWN_CLIENT
}
