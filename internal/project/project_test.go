package project

import (
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/confinement/internal/fsutil"
	"github.com/banshee-data/confinement/internal/security"
	"github.com/banshee-data/confinement/internal/timeutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T) *Project {
	t.Helper()
	p := New("Lemhi", "/data/lemhi")
	p.SetClock(timeutil.NewMockClock(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)))
	p.AddMetadata("Watershed", "Lemhi")
	for _, name := range []string{"network", "valley", "channel"} {
		_, err := p.AddInput(name, "Inputs/"+name+".geojson", "/orig/"+name+".shp")
		require.NoError(t, err)
	}
	return p
}

func TestAddInput(t *testing.T) {
	p := newProject(t)

	in, err := p.Input("valley")
	require.NoError(t, err)
	assert.Equal(t, "Inputs/valley.geojson", in.Path)
	assert.Equal(t, "/orig/valley.shp", in.OriginalPath())
	assert.NotEmpty(t, in.GUID)

	_, err = p.AddInput("valley", "Inputs/other.geojson", "")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = p.AddInput("escape", "../outside.geojson", "")
	assert.ErrorIs(t, err, security.ErrOutsideProject)

	_, err = p.Input("nope")
	assert.ErrorIs(t, err, ErrUnknownInput)
}

func TestAddMetadataReplaces(t *testing.T) {
	p := newProject(t)
	p.AddMetadata("Watershed", "Salmon")
	assert.Len(t, p.Meta, 1)
	assert.Equal(t, "Salmon", p.Metadata("Watershed"))
}

func TestAddRealization(t *testing.T) {
	p := newProject(t)

	r, err := p.AddRealization("Run 01", "network", "valley", "channel")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T09:30:00", r.DateCreated)
	assert.Equal(t, "False", r.Promoted)
	assert.NotEmpty(t, r.GUID)
	assert.Equal(t, "Realizations/Run_01/ConfiningMargins.geojson", r.Outputs.ConfiningMargins.Path)
	assert.Equal(t, "network", r.Inputs.StreamNetwork.Ref)

	_, err = p.AddRealization("Run 02", "network", "missing", "channel")
	assert.ErrorIs(t, err, ErrUnknownInput)

	_, err = p.AddRealization("Run 01", "network", "valley", "channel")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = p.Realization("Run 03")
	assert.ErrorIs(t, err, ErrUnknownRealization)
}

func TestAnalyses(t *testing.T) {
	p := newProject(t)
	r, err := p.AddRealization("base", "network", "valley", "channel")
	require.NoError(t, err)

	mw, err := r.AddMovingWindow("windows", 50, []float64{100, 250.5})
	require.NoError(t, err)
	assert.Equal(t, MovingWindow, mw.Type())
	v, ok := mw.Param("WindowSizes")
	require.True(t, ok)
	sizes, err := ParseWindowSizes(v)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 250.5}, sizes)
	out, ok := mw.Output(OutputSeedPoints)
	require.True(t, ok)
	assert.Equal(t, "Realizations/base/Analyses/windows/SeedPoints.geojson", out.Path)

	fixed, err := r.AddFixedSegments("fixed", 200)
	require.NoError(t, err)
	size, err := fixed.FloatParam("SegmentSize")
	require.NoError(t, err)
	assert.Equal(t, 200.0, size)

	_, err = r.AddFixedSegments("fixed", 100)
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = p.AddCustomSegments("base", "custom", "segments", "SegID")
	assert.ErrorIs(t, err, ErrUnknownInput, "segment dataset must be registered first")

	_, err = p.AddInput("segments", "Inputs/segments.geojson", "")
	require.NoError(t, err)
	_, err = p.AddCustomSegments("base", "custom", "segments", "SegID")
	require.NoError(t, err)
	assert.Equal(t, []Ref{{Ref: "segments"}}, r.Inputs.Segments)

	_, err = r.Analysis("absent")
	assert.ErrorIs(t, err, ErrUnknownAnalysis)
	assert.Len(t, r.AnalysisList(), 3)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	p := newProject(t)
	r, err := p.AddRealization("base", "network", "valley", "channel")
	require.NoError(t, err)
	_, err = r.AddMovingWindow("windows", 50, []float64{100})
	require.NoError(t, err)
	_, err = r.AddFixedSegments("fixed", 200)
	require.NoError(t, err)

	require.NoError(t, p.Save(fsys, "/data/lemhi/project.rs.xml"))
	raw, err := fsys.ReadFile("/data/lemhi/project.rs.xml")
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "<?xml"))
	assert.Contains(t, text, `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`)
	assert.Contains(t, text, "\n  <Name>Lemhi</Name>")
	assert.Contains(t, text, "<MovingWindow>")
	assert.Contains(t, text, "<FixedSegments>")

	got, err := Load(fsys, "/data/lemhi/project.rs.xml")
	require.NoError(t, err)
	assert.Equal(t, "/data/lemhi", got.Dir)

	opts := []cmp.Option{
		cmpopts.IgnoreFields(Project{}, "XMLName", "XSI", "SchemaLocation", "Dir", "clock"),
		cmpopts.IgnoreFields(Analysis{}, "XMLName"),
		cmp.AllowUnexported(Realization{}),
		cmp.AllowUnexported(analyses{}),
	}
	if diff := cmp.Diff(p, got, opts...); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	a, err := got.Realizations[0].Analysis("fixed")
	require.NoError(t, err)
	assert.Equal(t, FixedSegments, a.Type())

	abs, err := got.Resolve(got.Inputs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "/data/lemhi/Inputs/network.geojson", abs)
}

func TestLoadRejects(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"wrong type", `<Project><Name>x</Name><ProjectType>VBET</ProjectType></Project>`, ErrNotConfinement},
		{"dangling ref", `<Project><Name>x</Name><ProjectType>Confinement</ProjectType>
<Realizations><Confinement promoted="False" dateCreated="2024-01-01T00:00:00"><Name>r</Name>
<Inputs><ValleyBottom ref="vb"/><ChannelPolygon ref="ch"/><StreamNetwork ref="sn"/></Inputs>
</Confinement></Realizations></Project>`, ErrUnknownInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, fsys.WriteFile("/p/project.xml", []byte(tt.body), 0o644))
			_, err := Load(fsys, "/p/project.xml")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	require.NoError(t, fsys.WriteFile("/p/bad.xml", []byte("<Project>"), 0o644))
	_, err := Load(fsys, "/p/bad.xml")
	assert.Error(t, err)
}
