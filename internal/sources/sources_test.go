package sources

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSource builds a FontSource without URL validation
func newTestSource(repoURL, rev string, configFiles ...string) FontSource {
	return FontSource{repoURL: repoURL, rev: rev, configFiles: configFiles}
}

func TestParseRepoURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		wantOrg  string
		wantName string
		wantErr  bool
	}{
		{name: "plain", url: "https://github.com/googlefonts/google-fonts-sources", wantOrg: "googlefonts", wantName: "google-fonts-sources"},
		{name: "trailing slash", url: "https://github.com/org/name/", wantOrg: "org", wantName: "name"},
		{name: "several trailing slashes", url: "https://github.com/org/name//", wantOrg: "org", wantName: "name"},
		{name: "deeper path keeps last two segments", url: "https://gitlab.com/group/sub/name", wantOrg: "sub", wantName: "name"},
		{name: "local path", url: "/tmp/cache/org/name", wantOrg: "org", wantName: "name"},
		{name: "host only", url: "https://github.com", wantErr: true},
		{name: "host where org belongs", url: "https://github.com/name", wantErr: true},
		{name: "single segment", url: "name", wantErr: true},
		{name: "empty", url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			org, name, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrBadRepoURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrg, org)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestCachePath(t *testing.T) {
	t.Parallel()

	path, err := CachePath("/cache", "https://github.com/org/name/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache", "org", "name"), path)

	_, err = CachePath("/cache", "https://github.com")
	require.ErrorIs(t, err, ErrBadRepoURL)
}

func TestNewFontSource(t *testing.T) {
	t.Parallel()

	files := []string{"sources/config.yaml"}
	src, err := NewFontSource("https://github.com/org/name", "abc", files)
	require.NoError(t, err)
	assert.Equal(t, "org", src.RepoOrg())
	assert.Equal(t, "name", src.RepoName())
	assert.Equal(t, "abc", src.Rev())
	assert.Equal(t, files, src.ConfigFiles())
	assert.False(t, src.Auth())
	assert.False(t, src.HasRevConflict())

	// the source owns its slice
	files[0] = "changed"
	assert.Equal(t, []string{"sources/config.yaml"}, src.ConfigFiles())

	_, err = NewFontSource("https://github.com", "abc", nil)
	require.ErrorIs(t, err, ErrBadRepoURL)
}

func TestFontSource_RepoPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rev      string
		conflict bool
		want     string
	}{
		{name: "no conflict", rev: "0123456789abcdef", want: filepath.Join("/cache", "org", "name")},
		{name: "conflict uses ten char suffix", rev: "0123456789abcdef", conflict: true, want: filepath.Join("/cache", "org", "name_0123456789")},
		{name: "conflict with short rev", rev: "abc", conflict: true, want: filepath.Join("/cache", "org", "name_abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := newTestSource("https://github.com/org/name", tt.rev)
			src.hasRevConflict = tt.conflict
			assert.Equal(t, tt.want, src.RepoPath("/cache"))
		})
	}
}

func TestFontSource_JSON(t *testing.T) {
	t.Parallel()

	src := newTestSource("https://github.com/org/name", "abc", "sources/config.yaml", "sources/config-extra.yaml").WithAuth(true)
	src.hasRevConflict = true

	data, err := json.Marshal(src)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"repo_url": "https://github.com/org/name",
		"rev": "abc",
		"config_files": ["sources/config.yaml", "sources/config-extra.yaml"],
		"auth": true,
		"has_rev_conflict": true
	}`, string(data))

	var decoded FontSource
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, src, decoded)
}

func TestFontSource_JSON_OmitsFalseFlags(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(newTestSource("https://github.com/org/name", "abc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"repo_url": "https://github.com/org/name", "rev": "abc", "config_files": []}`, string(data))
}

func TestFontSource_UnmarshalRejectsBadURL(t *testing.T) {
	t.Parallel()

	var src FontSource
	err := json.Unmarshal([]byte(`{"repo_url": "https://github.com", "rev": "abc", "config_files": []}`), &src)
	require.ErrorIs(t, err, ErrBadRepoURL)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	a := newTestSource("https://github.com/a/x", "2")
	b := newTestSource("https://github.com/b/x", "1")
	a1 := newTestSource("https://github.com/a/x", "1")

	assert.Negative(t, Compare(a, b))
	assert.Positive(t, Compare(b, a))
	assert.Positive(t, Compare(a, a1))
	assert.Zero(t, Compare(a, a))
}

func TestMarkRevConflicts(t *testing.T) {
	t.Parallel()

	const repo = "https://github.com/org/name"
	const other = "https://github.com/org/other"

	tests := []struct {
		name  string
		input []FontSource
		want  []bool
	}{
		{
			name: "majority revision wins",
			input: []FontSource{
				newTestSource(repo, "abc"),
				newTestSource(repo, "def"),
				newTestSource(repo, "abc"),
				newTestSource(repo, "abc"),
			},
			want: []bool{false, true, false, false},
		},
		{
			name: "single revision has no conflicts",
			input: []FontSource{
				newTestSource(repo, "abc"),
				newTestSource(repo, "abc"),
				newTestSource(other, "def"),
			},
			want: []bool{false, false, false},
		},
		{
			name: "tie goes to greatest revision",
			input: []FontSource{
				newTestSource(repo, "aaa"),
				newTestSource(repo, "bbb"),
			},
			want: []bool{true, false},
		},
		{
			name: "repositories are reconciled independently",
			input: []FontSource{
				newTestSource(repo, "abc"),
				newTestSource(other, "111"),
				newTestSource(repo, "def"),
				newTestSource(other, "111"),
				newTestSource(repo, "def"),
				newTestSource(other, "222"),
			},
			want: []bool{true, false, false, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			MarkRevConflicts(tt.input)
			got := make([]bool, len(tt.input))
			for i, s := range tt.input {
				got[i] = s.HasRevConflict()
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
