package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGitInfo_DeriveVersion(t *testing.T) {
	tests := []struct {
		tag     string
		version string
	}{
		{"v3.2.1", "3.2.1"},
		{"v0.0.0", "0.0.0"},
		{"3.2.1", ""},
		{"v3.2", ""},
		{"v3.2.1-rc1", ""},
		{"release-3.2.1", ""},
		{"", ""},
	}
	for _, tt := range tests {
		g := GitInfo{Tag: tt.tag}
		g.DeriveVersion()
		assert.Equal(t, tt.version, g.Version, "tag %q", tt.tag)
	}
}
