package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// MalformedManifestError wraps a schema violation with the field path at
// which it was detected.
type MalformedManifestError struct {
	Path string
	Err  error
}

func (e *MalformedManifestError) Error() string {
	return fmt.Sprintf("malformed manifest at %s: %v", e.Path, e.Err)
}

func (e *MalformedManifestError) Unwrap() error { return e.Err }

func malformed(path string, err error) error {
	return &MalformedManifestError{Path: path, Err: err}
}

type rawManifest struct {
	Type              string                     `json:"type"`
	Name              string                     `json:"name,omitempty"`
	Summary           string                     `json:"summary,omitempty"`
	License           string                     `json:"license,omitempty"`
	Version           string                     `json:"version,omitempty"`
	ExposedModules    json.RawMessage            `json:"exposed-modules,omitempty"`
	ElmVersion        string                     `json:"elm-version"`
	SourceDirectories []string                   `json:"source-directories,omitempty"`
	Dependencies      json.RawMessage            `json:"dependencies"`
	TestDependencies  json.RawMessage            `json:"test-dependencies"`
}

// Parse decodes a manifest from its JSON exchange form, dispatching on the
// "type" discriminator.
func Parse(data []byte) (Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, malformed("$", err)
	}

	switch raw.Type {
	case string(Application):
		return parseApplication(raw)
	case string(Package):
		return parsePackage(raw)
	case "":
		return Manifest{}, malformed("type", errors.New("missing required field"))
	default:
		return Manifest{}, malformed("type", errors.Errorf("unknown manifest type %q", raw.Type))
	}
}

func parseApplication(raw rawManifest) (Manifest, error) {
	elmVersion, err := semver.Parse(raw.ElmVersion)
	if err != nil {
		return Manifest{}, malformed("elm-version", err)
	}

	deps, err := parseAppDeps(raw.Dependencies, "dependencies")
	if err != nil {
		return Manifest{}, err
	}
	testDeps, err := parseAppDeps(raw.TestDependencies, "test-dependencies")
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Kind: Application,
		App: &Application{
			ElmVersion:        elmVersion,
			SourceDirectories: raw.SourceDirectories,
			Dependencies:      deps,
			TestDependencies:  testDeps,
		},
	}
	if err := m.validateDisjoint(); err != nil {
		return Manifest{}, malformed("dependencies", err)
	}
	return m, nil
}

type rawAppDeps struct {
	Direct   map[string]string `json:"direct"`
	Indirect map[string]string `json:"indirect"`
}

func parseAppDeps(data json.RawMessage, path string) (AppDependencies, error) {
	out := newAppDependencies()
	if len(data) == 0 {
		return out, nil
	}

	var raw rawAppDeps
	if err := json.Unmarshal(data, &raw); err != nil {
		return AppDependencies{}, malformed(path, err)
	}

	for k, v := range raw.Direct {
		name, err := pkgname.Parse(k)
		if err != nil {
			return AppDependencies{}, malformed(path+".direct", err)
		}
		ver, err := semver.Parse(v)
		if err != nil {
			return AppDependencies{}, malformed(path+".direct."+k, err)
		}
		out.Direct[name] = ver
	}
	for k, v := range raw.Indirect {
		name, err := pkgname.Parse(k)
		if err != nil {
			return AppDependencies{}, malformed(path+".indirect", err)
		}
		ver, err := semver.Parse(v)
		if err != nil {
			return AppDependencies{}, malformed(path+".indirect."+k, err)
		}
		out.Indirect[name] = ver
	}
	return out, nil
}

func parsePackage(raw rawManifest) (Manifest, error) {
	name, err := pkgname.Parse(raw.Name)
	if err != nil {
		return Manifest{}, malformed("name", err)
	}
	version, err := semver.Parse(raw.Version)
	if err != nil {
		return Manifest{}, malformed("version", err)
	}
	elmVersion, err := semver.ParseRange(raw.ElmVersion)
	if err != nil {
		return Manifest{}, malformed("elm-version", err)
	}
	exposed, err := parseExposed(raw.ExposedModules)
	if err != nil {
		return Manifest{}, malformed("exposed-modules", err)
	}
	deps, err := parseRangeDeps(raw.Dependencies, "dependencies")
	if err != nil {
		return Manifest{}, err
	}
	testDeps, err := parseRangeDeps(raw.TestDependencies, "test-dependencies")
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		Kind: Package,
		Pkg: &Package{
			Name:             name,
			Summary:          raw.Summary,
			License:          raw.License,
			Version:          version,
			ExposedModules:   exposed,
			ElmVersion:       elmVersion,
			Dependencies:     deps,
			TestDependencies: testDeps,
		},
	}
	if err := m.validateDisjoint(); err != nil {
		return Manifest{}, malformed("dependencies", err)
	}
	return m, nil
}

func parseExposed(data json.RawMessage) (Exposed, error) {
	if len(data) == 0 {
		return Exposed{Plain: []string{}}, nil
	}

	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		return Exposed{Plain: plain}, nil
	}

	var grouped map[string][]string
	if err := json.Unmarshal(data, &grouped); err != nil {
		return Exposed{}, errors.New("expected a list or an object of lists")
	}
	return Exposed{Grouped: grouped}, nil
}

func parseRangeDeps(data json.RawMessage, path string) (map[pkgname.Name]semver.Range, error) {
	out := make(map[pkgname.Name]semver.Range)
	if len(data) == 0 {
		return out, nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed(path, err)
	}
	for k, v := range raw {
		name, err := pkgname.Parse(k)
		if err != nil {
			return nil, malformed(path, err)
		}
		r, err := semver.ParseRange(v)
		if err != nil {
			return nil, malformed(path+"."+k, err)
		}
		out[name] = r
	}
	return out, nil
}

// Emit produces the canonical textual form: stable key ordering (maps
// sorted lexicographically, top-level fields in the fixed order the
// reference tool uses) and four-space indentation.
func Emit(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")

	idx := buildIndex(m)

	var fields []func(*bytes.Buffer) error
	switch m.Kind {
	case Application:
		fields = []func(*bytes.Buffer) error{
			field("type", jsonString(string(Application))),
			field("source-directories", jsonStrings(m.App.SourceDirectories)),
			field("elm-version", jsonString(m.App.ElmVersion.String())),
			field("dependencies", jsonAppDeps(m.App.Dependencies, idx.namesByClassification(Direct), idx.namesByClassification(Indirect))),
			field("test-dependencies", jsonAppDeps(m.App.TestDependencies, idx.namesByClassification(TestDirect), idx.namesByClassification(TestIndirect))),
		}
	case Package:
		fields = []func(*bytes.Buffer) error{
			field("type", jsonString(string(Package))),
			field("name", jsonString(m.Pkg.Name.String())),
			field("summary", jsonString(m.Pkg.Summary)),
			field("license", jsonString(m.Pkg.License)),
			field("version", jsonString(m.Pkg.Version.String())),
			field("exposed-modules", jsonExposed(m.Pkg.ExposedModules)),
			field("elm-version", jsonString(m.Pkg.ElmVersion.String())),
			field("dependencies", jsonRangeDeps(m.Pkg.Dependencies, idx.namesByClassification(Direct))),
			field("test-dependencies", jsonRangeDeps(m.Pkg.TestDependencies, idx.namesByClassification(TestDirect))),
		}
	default:
		return nil, errors.Errorf("unknown manifest kind %q", m.Kind)
	}

	for i, f := range fields {
		if err := f(&buf); err != nil {
			return nil, err
		}
		if i != len(fields)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}

	buf.WriteString("}")
	return buf.Bytes(), nil
}

func field(key string, write func(*bytes.Buffer) error) func(*bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		buf.WriteString("    ")
		b, _ := json.Marshal(key)
		buf.Write(b)
		buf.WriteString(": ")
		return write(buf)
	}
}

func jsonString(s string) func(*bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

func jsonStrings(ss []string) func(*bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		if ss == nil {
			ss = []string{}
		}
		b, err := json.Marshal(ss)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

func jsonAppDeps(d AppDependencies, directNames, indirectNames []pkgname.Name) func(*bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		buf.WriteString("{\n")
		buf.WriteString("        \"direct\": ")
		if err := writeVersionMap(buf, d.Direct, directNames, "        "); err != nil {
			return err
		}
		buf.WriteString(",\n        \"indirect\": ")
		if err := writeVersionMap(buf, d.Indirect, indirectNames, "        "); err != nil {
			return err
		}
		buf.WriteString("\n    }")
		return nil
	}
}

func writeVersionMap(buf *bytes.Buffer, m map[pkgname.Name]semver.Version, names []pkgname.Name, indent string) error {
	if len(names) == 0 {
		buf.WriteString("{}")
		return nil
	}
	buf.WriteString("{\n")
	for i, n := range names {
		buf.WriteString(indent + "    ")
		kb, _ := json.Marshal(n.String())
		buf.Write(kb)
		buf.WriteString(": ")
		vb, _ := json.Marshal(m[n].String())
		buf.Write(vb)
		if i != len(names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString(indent + "}")
	return nil
}

func jsonRangeDeps(m map[pkgname.Name]semver.Range, names []pkgname.Name) func(*bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		if len(names) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i, n := range names {
			buf.WriteString("        ")
			kb, _ := json.Marshal(n.String())
			buf.Write(kb)
			buf.WriteString(": ")
			vb, _ := json.Marshal(m[n].String())
			buf.Write(vb)
			if i != len(names)-1 {
				buf.WriteString(",")
			}
			buf.WriteString("\n")
		}
		buf.WriteString("    }")
		return nil
	}
}

func jsonExposed(e Exposed) func(*bytes.Buffer) error {
	return func(buf *bytes.Buffer) error {
		if e.isGrouped() {
			b, err := json.MarshalIndent(e.Grouped, "    ", "    ")
			if err != nil {
				return err
			}
			buf.Write(b)
			return nil
		}
		plain := e.Plain
		if plain == nil {
			plain = []string{}
		}
		b, err := json.Marshal(plain)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
