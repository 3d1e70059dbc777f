package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/security"
	"github.com/banshee-data/confinement/internal/timeutil"
	"github.com/banshee-data/confinement/internal/version"
	"github.com/google/uuid"
)

const (
	// ProjectType identifies confinement projects.
	ProjectType = "Confinement"

	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "https://raw.githubusercontent.com/Riverscapes/Program/master/Project/XSD/V1/Project.xsd"
)

// Analysis types. The type is the element name of the analysis.
const (
	MovingWindow   = "MovingWindow"
	FixedSegments  = "FixedSegments"
	CustomSegments = "CustomSegments"
)

// Output vector types recorded in analysis output metadata.
const (
	OutputSeedPoints     = "SeedPointFile"
	OutputMovingWindows  = "MovingWindowFile"
	OutputWindowEnds     = "WindowEndpointFile"
	OutputFixedSegments  = "FixedSegmentFile"
	OutputCustomSegments = "CustomSegmentFile"
)

var (
	ErrUnknownInput       = errors.New("unknown input")
	ErrUnknownRealization = errors.New("unknown realization")
	ErrUnknownAnalysis    = errors.New("unknown analysis")
	ErrDuplicate          = errors.New("duplicate name")
	ErrNotConfinement     = errors.New("not a confinement project")
)

// Meta is a name/value pair. It is used for project metadata, dataset
// metadata and analysis parameters.
type Meta struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Input is a vector dataset registered with the project.
type Input struct {
	ID   string `xml:"id,attr"`
	GUID string `xml:"Guid,attr,omitempty"`
	Name string `xml:"Name"`
	Path string `xml:"Path"`
	Meta []Meta `xml:"MetaData>Meta,omitempty"`
}

// OriginalPath is the path the dataset was copied from, if recorded.
func (in *Input) OriginalPath() string {
	return metaValue(in.Meta, "original_path")
}

// Ref points at an input by ID.
type Ref struct {
	Ref string `xml:"ref,attr"`
}

// Output is a dataset written by a realization or analysis.
type Output struct {
	Name string `xml:"Name"`
	Path string `xml:"Path"`
	Meta []Meta `xml:"MetaData>Meta,omitempty"`
}

// Type returns the output's Type metadata.
func (o Output) Type() string { return metaValue(o.Meta, "Type") }

// RealizationInputs references the datasets a realization was built from.
type RealizationInputs struct {
	ValleyBottom   Ref   `xml:"ValleyBottom"`
	ChannelPolygon Ref   `xml:"ChannelPolygon"`
	StreamNetwork  Ref   `xml:"StreamNetwork"`
	Segments       []Ref `xml:"SegmentedNetwork,omitempty"`
}

// RealizationOutputs are the datasets every realization produces.
type RealizationOutputs struct {
	RawConfiningState Output `xml:"RawConfiningState"`
	ConfiningMargins  Output `xml:"ConfiningMargins"`
}

// Analysis is a post-processing run on a realization's confining state.
// XMLName.Local carries the analysis type.
type Analysis struct {
	XMLName xml.Name
	Name    string   `xml:"Name"`
	Params  []Meta   `xml:"Parameters>Param"`
	Outputs []Output `xml:"Outputs>Vector"`
}

// Type returns the analysis type.
func (a *Analysis) Type() string { return a.XMLName.Local }

// Param returns a parameter value and whether it is present.
func (a *Analysis) Param(name string) (string, bool) {
	for _, p := range a.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Output returns the output of the given type.
func (a *Analysis) Output(typ string) (Output, bool) {
	for _, o := range a.Outputs {
		if o.Type() == typ {
			return o, true
		}
	}
	return Output{}, false
}

type analyses struct {
	Items []*Analysis `xml:",any"`
}

// Realization is one run of the margin extraction on a set of inputs.
type Realization struct {
	Promoted       string             `xml:"promoted,attr"`
	DateCreated    string             `xml:"dateCreated,attr"`
	ProductVersion string             `xml:"productVersion,attr,omitempty"`
	GUID           string             `xml:"Guid,attr,omitempty"`
	Name           string             `xml:"Name"`
	Inputs         RealizationInputs  `xml:"Inputs"`
	Outputs        RealizationOutputs `xml:"Outputs"`
	Analyses       analyses           `xml:"Analyses"`
}

// Folder is the project-relative folder holding the realization outputs.
func (r *Realization) Folder() string {
	return path.Join("Realizations", security.SanitizeFilename(r.Name))
}

// Analysis returns the named analysis.
func (r *Realization) Analysis(name string) (*Analysis, error) {
	for _, a := range r.Analyses.Items {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in realization %q", ErrUnknownAnalysis, name, r.Name)
}

// AnalysisList returns the analyses in document order.
func (r *Realization) AnalysisList() []*Analysis {
	return r.Analyses.Items
}

func (r *Realization) addAnalysis(typ, name string, params []Meta, outputs map[string]string) (*Analysis, error) {
	if name == "" {
		return nil, errors.New("analysis name is required")
	}
	if _, err := r.Analysis(name); err == nil {
		return nil, fmt.Errorf("%w: analysis %q", ErrDuplicate, name)
	}
	folder := path.Join(r.Folder(), "Analyses", security.SanitizeFilename(name))
	a := &Analysis{XMLName: xml.Name{Local: typ}, Name: name, Params: params}
	for _, typ := range sortedKeys(outputs) {
		a.Outputs = append(a.Outputs, Output{
			Name: outputs[typ],
			Path: path.Join(folder, outputs[typ]+".geojson"),
			Meta: []Meta{{Name: "Type", Value: typ}},
		})
	}
	r.Analyses.Items = append(r.Analyses.Items, a)
	return a, nil
}

// AddMovingWindow registers a moving-window analysis.
func (r *Realization) AddMovingWindow(name string, seedDistance float64, windows []float64) (*Analysis, error) {
	sizes := make([]string, len(windows))
	for i, w := range windows {
		sizes[i] = formatFloat(w)
	}
	return r.addAnalysis(MovingWindow, name,
		[]Meta{
			{Name: "SeedPointDistance", Value: formatFloat(seedDistance)},
			{Name: "WindowSizes", Value: strings.Join(sizes, ";")},
		},
		map[string]string{
			OutputSeedPoints:    "SeedPoints",
			OutputMovingWindows: "MovingWindows",
			OutputWindowEnds:    "WindowEndpoints",
		})
}

// AddFixedSegments registers a fixed-length segmentation analysis.
func (r *Realization) AddFixedSegments(name string, size float64) (*Analysis, error) {
	return r.addAnalysis(FixedSegments, name,
		[]Meta{{Name: "SegmentSize", Value: formatFloat(size)}},
		map[string]string{OutputFixedSegments: "FixedSegments"})
}

// Project is the project document. Dir is the folder holding the document
// and is not serialised.
type Project struct {
	XMLName        xml.Name       `xml:"Project"`
	XSI            string         `xml:"xmlns:xsi,attr,omitempty"`
	SchemaLocation string         `xml:"xsi:noNamespaceSchemaLocation,attr,omitempty"`
	Name           string         `xml:"Name"`
	ProjectType    string         `xml:"ProjectType"`
	Meta           []Meta         `xml:"MetaData>Meta,omitempty"`
	Inputs         []*Input       `xml:"Inputs>Vector"`
	Realizations   []*Realization `xml:"Realizations>Confinement"`

	Dir   string         `xml:"-"`
	clock timeutil.Clock `xml:"-"`
}

// New creates an empty project rooted at dir.
func New(name, dir string) *Project {
	return &Project{
		Name:        name,
		ProjectType: ProjectType,
		Dir:         dir,
		clock:       timeutil.RealClock{},
	}
}

// SetClock replaces the clock used to stamp new realizations.
func (p *Project) SetClock(c timeutil.Clock) { p.clock = c }

// AddMetadata sets a project metadata value, replacing an existing one.
func (p *Project) AddMetadata(name, value string) {
	for i := range p.Meta {
		if p.Meta[i].Name == name {
			p.Meta[i].Value = value
			return
		}
	}
	p.Meta = append(p.Meta, Meta{Name: name, Value: value})
}

// Metadata returns a project metadata value.
func (p *Project) Metadata(name string) string { return metaValue(p.Meta, name) }

// AddInput registers a dataset. The ID is the dataset name, so names must
// be unique. relPath must be relative to the project folder.
func (p *Project) AddInput(name, relPath, originalPath string) (*Input, error) {
	if name == "" {
		return nil, errors.New("input name is required")
	}
	if _, err := p.Input(name); err == nil {
		return nil, fmt.Errorf("%w: input %q", ErrDuplicate, name)
	}
	if _, err := p.Resolve(relPath); err != nil {
		return nil, fmt.Errorf("input %q: %w", name, err)
	}
	in := &Input{ID: name, GUID: uuid.NewString(), Name: name, Path: filepath.ToSlash(relPath)}
	if originalPath != "" {
		in.Meta = append(in.Meta, Meta{Name: "original_path", Value: originalPath})
	}
	p.Inputs = append(p.Inputs, in)
	return in, nil
}

// Input returns the input with the given ID.
func (p *Project) Input(id string) (*Input, error) {
	for _, in := range p.Inputs {
		if in.ID == id {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownInput, id)
}

// AddRealization registers a realization on three existing inputs. Its
// output paths are derived from its name.
func (p *Project) AddRealization(name, streamNetwork, valleyBottom, channelPolygon string) (*Realization, error) {
	if name == "" {
		return nil, errors.New("realization name is required")
	}
	if _, err := p.Realization(name); err == nil {
		return nil, fmt.Errorf("%w: realization %q", ErrDuplicate, name)
	}
	for _, id := range []string{streamNetwork, valleyBottom, channelPolygon} {
		if _, err := p.Input(id); err != nil {
			return nil, err
		}
	}
	clock := p.clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Realization{
		Promoted:       "False",
		DateCreated:    timeutil.Format(clock.Now()),
		ProductVersion: version.Version,
		GUID:           uuid.NewString(),
		Name:           name,
		Inputs: RealizationInputs{
			ValleyBottom:   Ref{Ref: valleyBottom},
			ChannelPolygon: Ref{Ref: channelPolygon},
			StreamNetwork:  Ref{Ref: streamNetwork},
		},
	}
	folder := r.Folder()
	r.Outputs = RealizationOutputs{
		RawConfiningState: Output{Name: "ConfinementState", Path: path.Join(folder, "ConfinementState.geojson")},
		ConfiningMargins:  Output{Name: "ConfiningMargins", Path: path.Join(folder, "ConfiningMargins.geojson")},
	}
	p.Realizations = append(p.Realizations, r)
	return r, nil
}

// Realization returns the named realization.
func (p *Project) Realization(name string) (*Realization, error) {
	for _, r := range p.Realizations {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRealization, name)
}

// AddCustomSegments registers a custom-segment analysis on a realization.
// The segment dataset must already be a project input; it is also recorded
// as a realization input.
func (p *Project) AddCustomSegments(realization, name, segmentsInput, segmentField string) (*Analysis, error) {
	r, err := p.Realization(realization)
	if err != nil {
		return nil, err
	}
	if _, err := p.Input(segmentsInput); err != nil {
		return nil, err
	}
	a, err := r.addAnalysis(CustomSegments, name,
		[]Meta{
			{Name: "SegmentedNetwork", Value: segmentsInput},
			{Name: "SegmentField", Value: segmentField},
		},
		map[string]string{OutputCustomSegments: "CustomSegments"})
	if err != nil {
		return nil, err
	}
	for _, ref := range r.Inputs.Segments {
		if ref.Ref == segmentsInput {
			return a, nil
		}
	}
	r.Inputs.Segments = append(r.Inputs.Segments, Ref{Ref: segmentsInput})
	return a, nil
}

// Resolve turns a project-relative path into a filesystem path inside the
// project folder.
func (p *Project) Resolve(rel string) (string, error) {
	return security.ResolveProjectPath(p.Dir, rel)
}

// Validate checks the document type and that every realization reference
// names a registered input.
func (p *Project) Validate() error {
	if p.ProjectType != ProjectType {
		return fmt.Errorf("%w: project type %q", ErrNotConfinement, p.ProjectType)
	}
	for _, r := range p.Realizations {
		refs := []Ref{r.Inputs.ValleyBottom, r.Inputs.ChannelPolygon, r.Inputs.StreamNetwork}
		refs = append(refs, r.Inputs.Segments...)
		for _, ref := range refs {
			if _, err := p.Input(ref.Ref); err != nil {
				return fmt.Errorf("realization %q: %w", r.Name, err)
			}
		}
	}
	return nil
}

// Load reads a project document. The project folder is the folder holding
// the file.
func Load(fsys fsutil.FileSystem, file string) (*Project, error) {
	data, err := fsys.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	p := &Project{}
	if err := xml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", file, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("project %s: %w", file, err)
	}
	p.Dir = filepath.Dir(file)
	p.clock = timeutil.RealClock{}
	return p, nil
}

// Save writes the document as indented XML.
func (p *Project) Save(fsys fsutil.FileSystem, file string) error {
	p.XSI = xsiNamespace
	p.SchemaLocation = schemaLocation
	data, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}
	out := append([]byte(xml.Header), data...)
	out = append(out, '\n')
	if err := fsys.WriteFile(file, out, 0o644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

func metaValue(meta []Meta, name string) string {
	for _, m := range meta {
		if m.Name == name {
			return m.Value
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ParseWindowSizes reads the WindowSizes parameter of a moving-window
// analysis.
func ParseWindowSizes(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("window size %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// StringParam reads an analysis parameter that must be present and not
// blank.
func (a *Analysis) StringParam(name string) (string, error) {
	v, ok := a.Param(name)
	if !ok {
		return "", fmt.Errorf("analysis %q: missing parameter %s", a.Name, name)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("analysis %q: parameter %s is empty", a.Name, name)
	}
	return v, nil
}

// FloatParam reads a numeric analysis parameter.
func (a *Analysis) FloatParam(name string) (float64, error) {
	v, ok := a.Param(name)
	if !ok {
		return 0, fmt.Errorf("analysis %q: missing parameter %s", a.Name, name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("analysis %q: parameter %s: %w", a.Name, name, err)
	}
	return f, nil
}
