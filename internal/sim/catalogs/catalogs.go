package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	KindMelee  = "MELEE"
	KindRanged = "RANGED"
)

//go:embed weapons.schema.json
var weaponsSchemaJSON string

type Catalogs struct {
	Weapons WeaponCatalog
}

type WeaponCatalog struct {
	Palette []string
	Defs    map[string]WeaponDef
	Digest  string
}

type WeaponDef struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"` // "MELEE","RANGED"
	Damage   float64 `json:"damage"`
	Cooldown float64 `json:"cooldown"`
	Accuracy float64 `json:"accuracy"`
	Range    float64 `json:"range"`
	Mass     float64 `json:"mass"`
	MinSkill int     `json:"min_skill,omitempty"`
	AmmoType string  `json:"ammo_type,omitempty"`
}

func (d WeaponDef) Ranged() bool { return d.Kind == KindRanged }

func (d WeaponDef) UsesAmmo() bool { return d.AmmoType != "" }

func (c *Catalogs) Weapon(id string) (WeaponDef, bool) {
	if c == nil {
		return WeaponDef{}, false
	}
	d, ok := c.Weapons.Defs[id]
	return d, ok
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := LoadWeapons(filepath.Join(configDir, "weapons.json"), &c.Weapons); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromDefs builds a catalog in memory. Used by tests and embedders that
// already hold their definitions.
func FromDefs(defs ...WeaponDef) (*Catalogs, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	var c Catalogs
	if err := parseWeapons(raw, &c.Weapons); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func LoadWeapons(path string, out *WeaponCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseWeapons(raw, out)
}

func parseWeapons(raw []byte, out *WeaponCatalog) error {
	if err := validateWeapons(raw); err != nil {
		return fmt.Errorf("weapons.json: %w", err)
	}
	out.Digest = sha256Hex(raw)

	var defs []WeaponDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("weapons.json: %w", err)
	}
	out.Defs = map[string]WeaponDef{}
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return fmt.Errorf("weapons.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("weapons.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

var weaponsSchema = mustCompile("weapons.schema.json", weaponsSchemaJSON)

func mustCompile(name, src string) *jsonschema.Schema {
	s, err := jsonschema.CompileString(name, src)
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return s
}

func validateWeapons(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return weaponsSchema.Validate(v)
}
