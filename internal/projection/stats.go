package projection

import "github.com/hoopvalue/engine/internal/domain"

// StatProfile is the "mapping from stat to handler" called for in
// §9's design notes: natural ranges and default dispersion per stat
// family, looked up by a plain Go map rather than dispatched by class
// name.
type StatProfile struct {
	NaturalLow  float64
	NaturalHigh float64
	DefaultCV   float64
}

var statProfiles = map[domain.Stat]StatProfile{
	domain.StatPoints:   {NaturalLow: 0, NaturalHigh: 200, DefaultCV: 0.28},
	domain.StatRebounds: {NaturalLow: 0, NaturalHigh: 60, DefaultCV: 0.35},
	domain.StatAssists:  {NaturalLow: 0, NaturalHigh: 60, DefaultCV: 0.38},
	domain.StatThrees:   {NaturalLow: 0, NaturalHigh: 20, DefaultCV: 0.45},
	domain.StatBlocks:   {NaturalLow: 0, NaturalHigh: 20, DefaultCV: 0.55},
	domain.StatSteals:   {NaturalLow: 0, NaturalHigh: 20, DefaultCV: 0.50},
}

// ProfileFor returns the stat's handler, falling back to a generic
// profile for unrecognized stats (should not occur given §6's
// recognized-market set, but keeps the lookup total).
func ProfileFor(stat domain.Stat) StatProfile {
	if p, ok := statProfiles[stat]; ok {
		return p
	}
	return StatProfile{NaturalLow: 0, NaturalHigh: 200, DefaultCV: 0.35}
}
