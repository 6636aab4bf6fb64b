package adapters

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hoopvalue/engine/internal/domain"
)

// ParsedProp is a textual insight's player-prop interpretation, keyed
// by the normalized player key rather than a raw display name, per E3.
type ParsedProp struct {
	NormalizedPlayerKey string
	Stat                domain.Stat
	Side                domain.Side
	Line                float64
}

// insightPattern matches insights of the shape
// "<player name> over 24.5 points" or "<player name> under 6 assists",
// the two-way phrasing a sportsbook insight feed commonly uses.
var insightPattern = regexp.MustCompile(`(?i)^(.+?)\s+(over|under)\s+(\d+(?:\.\d+)?)\s*\+?\s+(points|rebounds|assists|threes|blocks|steals)\s*$`)

// ParsePlayerPropInsight converts one textual insight into a
// ParsedProp, per E1's "zero or more textual insights each parseable
// to an optional ParsedProp." Returns ok=false for anything that does
// not match the recognized phrasing, rather than erroring.
func ParsePlayerPropInsight(text string) (ParsedProp, bool) {
	trimmed := strings.TrimSpace(text)
	m := insightPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return ParsedProp{}, false
	}

	name, sideText, lineText, statText := m[1], strings.ToLower(m[2]), m[3], strings.ToLower(m[4])

	line, err := strconv.ParseFloat(lineText, 64)
	if err != nil {
		return ParsedProp{}, false
	}
	if strings.Contains(trimmed, lineText+"+") {
		line = domain.WholeNumberLine(line)
	}

	stat, ok := recognizedStats[statText]
	if !ok {
		return ParsedProp{}, false
	}
	side, ok := recognizedSides[sideText]
	if !ok {
		return ParsedProp{}, false
	}

	return ParsedProp{
		NormalizedPlayerKey: NormalizePlayerKey(name),
		Stat:                stat,
		Side:                side,
		Line:                line,
	}, true
}
