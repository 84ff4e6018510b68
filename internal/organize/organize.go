// Package organize converts vendor spreadsheet exports into the dialer
// layout (nome, cpf, livre columns, chave, fone1..) using named layout
// profiles.
package organize

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/sheet"
)

// ColumnMap binds one dialer column to a vendor export. Headers are
// candidate source header names, matched accent- and case-insensitively.
// Position is a zero-based fallback column index for exports without a
// usable header.
type ColumnMap struct {
	Target   string   `yaml:"target"`
	Headers  []string `yaml:"headers"`
	Position *int     `yaml:"position"`
}

// Profile is one named vendor layout.
type Profile struct {
	Name    string      `yaml:"name"`
	Columns []ColumnMap `yaml:"columns"`
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads layout profiles from a YAML file.
func LoadProfiles(path string) (map[string]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "organize: read profiles file")
	}

	var pf profilesFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, eris.Wrap(err, "organize: parse profiles file")
	}
	if len(pf.Profiles) == 0 {
		return nil, eris.Errorf("organize: %s defines no profiles", path)
	}

	out := make(map[string]Profile, len(pf.Profiles))
	for _, p := range pf.Profiles {
		if p.Name == "" {
			return nil, eris.New("organize: profile without a name")
		}
		if len(p.Columns) == 0 {
			return nil, eris.Errorf("organize: profile %q has no columns", p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}

// Organizer rewrites vendor exports into the dialer layout.
type Organizer struct {
	profiles map[string]Profile
}

// New builds an organizer over a set of loaded profiles.
func New(profiles map[string]Profile) *Organizer {
	return &Organizer{profiles: profiles}
}

// Organize converts one vendor export into the dialer layout named by the
// profile and writes it to outPath. Returns the number of data rows
// written.
func (o *Organizer) Organize(ctx context.Context, path, profileName, outPath string) (int, error) {
	profile, ok := o.profiles[profileName]
	if !ok {
		return 0, eris.Errorf("organize: unknown profile %q", profileName)
	}

	s, err := sheet.Open(path)
	if err != nil {
		return 0, eris.Wrap(err, "organize: open sheet")
	}

	sources := make([]int, len(profile.Columns))
	header := make([]string, len(profile.Columns))
	for i, cm := range profile.Columns {
		header[i] = cm.Target
		sources[i] = resolveSource(s, cm)
	}

	out := &sheet.Sheet{Name: "Plan1", Header: header}
	out.Rows = make([][]string, 0, len(s.Rows))
	for r := range s.Rows {
		if r%5000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, eris.Wrap(err, "organize: cancelled")
			}
		}
		row := make([]string, len(profile.Columns))
		for i, src := range sources {
			if src < 0 {
				continue
			}
			v := s.Cell(r, src)
			if strings.HasPrefix(profile.Columns[i].Target, "fone") {
				v = normalize.Digits(v)
			}
			row[i] = v
		}
		out.Rows = append(out.Rows, row)
	}

	if err := out.Save(outPath); err != nil {
		return 0, eris.Wrap(err, "organize: save sheet")
	}

	zap.L().Info("organize: sheet converted",
		zap.String("file", path),
		zap.String("profile", profileName),
		zap.String("out", outPath),
		zap.Int("rows", len(out.Rows)))
	return len(out.Rows), nil
}

func resolveSource(s *sheet.Sheet, cm ColumnMap) int {
	for _, h := range cm.Headers {
		if idx := s.HeaderIndex(h); idx >= 0 {
			return idx
		}
	}
	if cm.Position != nil && *cm.Position >= 0 && *cm.Position < len(s.Header) {
		return *cm.Position
	}
	return -1
}
