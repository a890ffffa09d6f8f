package model

import (
	"fmt"
	"strings"
)

type Quality int

const (
	QualityAwful Quality = iota
	QualityPoor
	QualityNormal
	QualityGood
	QualityExcellent
	QualityMasterwork
	QualityLegendary
)

var qualityNames = [...]string{
	"AWFUL",
	"POOR",
	"NORMAL",
	"GOOD",
	"EXCELLENT",
	"MASTERWORK",
	"LEGENDARY",
}

func (q Quality) Valid() bool { return q >= QualityAwful && q <= QualityLegendary }

func (q Quality) String() string {
	if !q.Valid() {
		return fmt.Sprintf("QUALITY(%d)", int(q))
	}
	return qualityNames[q]
}

func QualityNames() []string {
	out := make([]string, len(qualityNames))
	copy(out, qualityNames[:])
	return out
}

func ParseQuality(s string) (Quality, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range qualityNames {
		if n == s {
			return Quality(i), nil
		}
	}
	return QualityNormal, fmt.Errorf("unknown quality %q", s)
}

func (q Quality) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("invalid quality %d", int(q))
	}
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(b []byte) error {
	v, err := ParseQuality(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Weapon is a weapon thing, either lying in the world (a pickup candidate)
// or carried by an agent.
type Weapon struct {
	ID         string  `json:"id"`
	Def        string  `json:"def"`
	Quality    Quality `json:"quality"`
	Mass       float64 `json:"mass"`
	Pos        Vec3i   `json:"pos"`
	MapID      string  `json:"map_id"`
	Forbidden  bool    `json:"forbidden,omitempty"`
	OwnerID    string  `json:"owner_id,omitempty"`
	BiocodedTo string  `json:"biocoded_to,omitempty"`
	SpawnTick  uint64  `json:"spawn_tick"`
}
