package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	project := filepath.Join(tmpDir, "project")
	outside := filepath.Join(tmpDir, "outside")
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(project, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"dataset in project", filepath.Join(project, "inputs", "network.geojson"), false},
		{"project folder itself", project, false},
		{"dot-dot escape", filepath.Join(project, "..", "outside", "x.geojson"), true},
		{"through symlink", filepath.Join(project, "link", "x.geojson"), true},
		{"sibling with shared prefix", project + "2/x.geojson", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, project)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideProject)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveProjectPath(t *testing.T) {
	project := t.TempDir()

	got, err := ResolveProjectPath(project, "Inputs/Channel/channel.geojson")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(project, "Inputs", "Channel", "channel.geojson"), got)

	_, err = ResolveProjectPath(project, "../elsewhere.geojson")
	assert.ErrorIs(t, err, ErrOutsideProject)

	_, err = ResolveProjectPath(project, filepath.Join(project, "abs.geojson"))
	assert.ErrorIs(t, err, ErrOutsideProject)

	_, err = ResolveProjectPath(project, "")
	assert.Error(t, err)
}

func TestRelativeProjectPath(t *testing.T) {
	project := t.TempDir()

	rel, err := RelativeProjectPath(project, filepath.Join(project, "Outputs", "margins.geojson"))
	require.NoError(t, err)
	assert.Equal(t, "Outputs/margins.geojson", rel)

	_, err = RelativeProjectPath(project, filepath.Join(project, "..", "x.geojson"))
	assert.ErrorIs(t, err, ErrOutsideProject)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Moving Window 100m", "Moving_Window_100m"},
		{"a//b", "a_b"},
		{"..hidden..", "hidden"},
		{"", "unknown"},
		{"***", "unknown"},
		{"Confinement_01", "Confinement_01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestResolveProjectPathFolderNotCreatedYet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new-project")

	got, err := ResolveProjectPath(dir, "Inputs/network.geojson")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Inputs", "network.geojson"), got)

	_, err = ResolveProjectPath(dir, "../escape.geojson")
	assert.ErrorIs(t, err, ErrOutsideProject)
}
