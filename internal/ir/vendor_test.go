package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCopySpec_Defaults(t *testing.T) {
	spec := CopySpec{Name: "jquery"}
	assert.Equal(t, "jquery", spec.PackageDir())
	assert.Equal(t, []string{"jquery.js"}, spec.Globs())

	spec = CopySpec{Name: "jquery", Dir: "jquery-dist", Src: []string{"dist/**/*.js"}}
	assert.Equal(t, "jquery-dist", spec.PackageDir())
	assert.Equal(t, []string{"dist/**/*.js"}, spec.Globs())
}

func TestSegmentList_ScalarOrSequence(t *testing.T) {
	var m VendorManifest
	require.NoError(t, yaml.Unmarshal([]byte(`
packages:
  - name: a
    cwd: dist
  - name: b
    cwd: [dist, js]
`), &m))
	require.Len(t, m.Packages, 2)
	assert.Equal(t, SegmentList{"dist"}, m.Packages[0].CWD)
	assert.Equal(t, SegmentList{"dist", "js"}, m.Packages[1].CWD)
	require.NoError(t, m.Validate())
}

func TestVendorManifest_RejectsUnnamed(t *testing.T) {
	m := VendorManifest{Packages: []CopySpec{{}}}
	require.Error(t, m.Validate())
}
