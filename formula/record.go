package formula

import (
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/goplus/llbrew/internal/errors"
)

// Record is the declarative, on-disk form of a formula. One record file
// holds one version of one package; several records of the same package
// coexist side by side.
type Record struct {
	Name     string         `yaml:"name" toml:"name"`
	Desc     string         `yaml:"desc,omitempty" toml:"desc,omitempty"`
	Homepage string         `yaml:"homepage,omitempty" toml:"homepage,omitempty"`
	Version  string         `yaml:"version" toml:"version"`
	Source   SourceRecord   `yaml:"source" toml:"source"`
	Depends  []DepRecord    `yaml:"depends_on,omitempty" toml:"depends_on,omitempty"`
	Naming   *NamingRecord  `yaml:"naming,omitempty" toml:"naming,omitempty"`
	Options  []OptionRecord `yaml:"options,omitempty" toml:"options,omitempty"`
	Patches  []PatchRecord  `yaml:"patches,omitempty" toml:"patches,omitempty"`
	Install  InstallRecord  `yaml:"install" toml:"install"`
}

type SourceRecord struct {
	URL      string `yaml:"url,omitempty" toml:"url,omitempty"`
	SHA256   string `yaml:"sha256,omitempty" toml:"sha256,omitempty"`
	Git      string `yaml:"git,omitempty" toml:"git,omitempty"`
	Tag      string `yaml:"tag,omitempty" toml:"tag,omitempty"`
	Revision string `yaml:"revision,omitempty" toml:"revision,omitempty"`
}

type DepRecord struct {
	Name string `yaml:"name" toml:"name"`
	Kind string `yaml:"kind,omitempty" toml:"kind,omitempty"`
}

type NamingRecord struct {
	Prefix string `yaml:"prefix" toml:"prefix"`
	Since  string `yaml:"since" toml:"since"`
}

type OptionRecord struct {
	Name       string `yaml:"name" toml:"name"`
	Flag       string `yaml:"flag" toml:"flag"`
	Value      string `yaml:"value" toml:"value"`
	Introduced string `yaml:"introduced,omitempty" toml:"introduced,omitempty"`
	Rule       string `yaml:"rule,omitempty" toml:"rule,omitempty"`
	Applies    string `yaml:"applies,omitempty" toml:"applies,omitempty"`
}

type PatchRecord struct {
	URL     string `yaml:"url" toml:"url"`
	SHA256  string `yaml:"sha256" toml:"sha256"`
	Applies string `yaml:"applies,omitempty" toml:"applies,omitempty"`
	Strip   *int   `yaml:"strip,omitempty" toml:"strip,omitempty"`
}

type InstallRecord struct {
	Tool      string           `yaml:"tool,omitempty" toml:"tool,omitempty"`
	BuildType string           `yaml:"build_type,omitempty" toml:"build_type,omitempty"`
	BuildDir  string           `yaml:"build_dir,omitempty" toml:"build_dir,omitempty"`
	Args      []string         `yaml:"args,omitempty" toml:"args,omitempty"`
	Secondary *SecondaryRecord `yaml:"secondary,omitempty" toml:"secondary,omitempty"`
}

type SecondaryRecord struct {
	Dir       string `yaml:"dir" toml:"dir"`
	Root      string `yaml:"root,omitempty" toml:"root,omitempty"`
	Installer string `yaml:"installer,omitempty" toml:"installer,omitempty"`
}

// IsRecordFile reports whether name has an extension ParseRecord understands.
func IsRecordFile(name string) bool {
	switch path.Ext(name) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// ParseRecord decodes a record. The format is chosen by the extension of
// name: .yaml/.yml or .toml.
func ParseRecord(name string, data []byte) (*Record, error) {
	var r Record
	var err error
	switch path.Ext(name) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	case ".toml":
		err = toml.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("%s: unknown formula record format", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrMalformedFormula, "parse %s", name)
	}
	return &r, nil
}

// Spec converts the record into a Spec. Predicates and enumerations are
// parsed here; everything else is checked by New.
func (r *Record) Spec() (Spec, error) {
	spec := Spec{
		Name:     r.Name,
		Desc:     strings.TrimSpace(r.Desc),
		Homepage: r.Homepage,
		Version:  Version(r.Version),
		Source: Source{
			URL:      r.Source.URL,
			SHA256:   r.Source.SHA256,
			Repo:     r.Source.Git,
			Tag:      r.Source.Tag,
			Revision: r.Source.Revision,
		},
		Install: Install{
			Tool:      r.Install.Tool,
			BuildType: r.Install.BuildType,
			BuildDir:  r.Install.BuildDir,
			Args:      r.Install.Args,
		},
	}
	if r.Naming != nil {
		spec.Naming = Naming{Prefix: r.Naming.Prefix, Since: Version(r.Naming.Since)}
	}
	for _, d := range r.Depends {
		kind, err := ParseDepKind(d.Kind)
		if err != nil {
			return Spec{}, fmt.Errorf("dependency %s: %w", d.Name, err)
		}
		spec.Dependencies = append(spec.Dependencies, Dependency{Name: d.Name, Kind: kind})
	}
	for _, o := range r.Options {
		applies, err := ParsePredicate(o.Applies)
		if err != nil {
			return Spec{}, fmt.Errorf("option %s: %w", o.Name, err)
		}
		rule, err := ParseNamingRule(o.Rule)
		if err != nil {
			return Spec{}, fmt.Errorf("option %s: %w", o.Name, err)
		}
		spec.Options = append(spec.Options, Option{
			Name:       o.Name,
			Flag:       o.Flag,
			Value:      o.Value,
			Introduced: Version(o.Introduced),
			Rule:       rule,
			Applies:    applies,
		})
	}
	for _, p := range r.Patches {
		applies, err := ParsePredicate(p.Applies)
		if err != nil {
			return Spec{}, fmt.Errorf("patch %s: %w", p.URL, err)
		}
		strip := 1
		if p.Strip != nil {
			strip = *p.Strip
		}
		spec.Patches = append(spec.Patches, Patch{
			URL:     p.URL,
			SHA256:  p.SHA256,
			Applies: applies,
			Strip:   strip,
		})
	}
	if s := r.Install.Secondary; s != nil {
		spec.Install.Secondary = &Secondary{Dir: s.Dir, Root: s.Root, Installer: s.Installer}
	}
	return spec, nil
}

// Formula converts and validates the record.
func (r *Record) Formula() (*Formula, error) {
	spec, err := r.Spec()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrMalformedFormula, "formula %s@%s", r.Name, r.Version)
	}
	return New(spec)
}

// Load parses a record file and returns the formula it declares.
func Load(name string, data []byte) (*Formula, error) {
	r, err := ParseRecord(name, data)
	if err != nil {
		return nil, err
	}
	return r.Formula()
}
