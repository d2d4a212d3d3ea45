package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, buildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime
	})
}

func TestInjectedVersion(t *testing.T) {
	withVersion(t, "v1.2.0", "0123456789abcdef", "2024-05-01T12:00:00Z")

	assert.Equal(t, "v1.2.0", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "v1.2.0 (0123456)", GetShortVersion())
	assert.True(t, IsRelease())
	assert.Equal(t, "vidembed/v1.2.0", UserAgent())

	info := GetBuildInfo()
	assert.True(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Equal(info.BuildTime))
	assert.NotEmpty(t, info.GoVersion)

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "vidembed v1.2.0")
	assert.Contains(t, detailed, "Commit: 0123456789abcdef")
	assert.Contains(t, detailed, "Built: 2024-05-01T12:00:00Z")
}

func TestParseBuildTime(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Time
	}{
		{"", time.Time{}},
		{"unknown", time.Time{}},
		{"garbage", time.Time{}},
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{"2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.True(t, tc.expected.Equal(parseBuildTime(tc.input)))
		})
	}
}
