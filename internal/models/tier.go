package models

import (
	"fmt"
	"strings"
)

// Tier is the lead classification produced by engagement scoring.
type Tier uint8

const (
	TierNoShow Tier = iota
	TierCold
	TierCool
	TierWarm
	TierHot

	// NumTiers is the number of defined tiers.
	NumTiers = int(TierHot) + 1
)

var tierNames = [NumTiers]string{
	TierNoShow: "No-Show",
	TierCold:   "Cold Lead",
	TierCool:   "Cool Lead",
	TierWarm:   "Warm Lead",
	TierHot:    "Hot Lead",
}

// Tiers returns all tiers from hottest to no-show.
func Tiers() []Tier {
	return []Tier{TierHot, TierWarm, TierCool, TierCold, TierNoShow}
}

// String returns the display name, e.g. "Hot Lead".
func (t Tier) String() string {
	if int(t) < NumTiers {
		return tierNames[t]
	}
	return fmt.Sprintf("Tier(%d)", uint8(t))
}

// Valid reports whether t is a defined tier.
func (t Tier) Valid() bool { return int(t) < NumTiers }

// ParseTier accepts display names and loose variants ("hot", "hot-lead", "no_show").
func ParseTier(s string) (Tier, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	key = strings.TrimSuffix(key, " lead")
	switch key {
	case "hot":
		return TierHot, nil
	case "warm":
		return TierWarm, nil
	case "cool":
		return TierCool, nil
	case "cold":
		return TierCold, nil
	case "no show", "noshow":
		return TierNoShow, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
