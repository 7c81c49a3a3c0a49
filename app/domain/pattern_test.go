package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompilePattern_SegmentCount(t *testing.T) {
	for _, raw := range []string{"", "org", "org/repo", "a/b/c/d"} {
		_, err := CompilePattern(raw)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "pattern %q should not compile", raw)
	}

	_, err := CompilePattern("org/project/repo")
	require.NoError(t, err)
}

func TestPattern_LiteralMatchesCaseInsensitive(t *testing.T) {
	p, err := CompilePattern("PDIdev/CSE/legacy")
	require.NoError(t, err)

	require.True(t, p.Matches("pdidev", "cse", "Legacy"))
	require.True(t, p.Matches("PDIDEV", "CSE", "legacy"))
	require.False(t, p.Matches("pdidev2", "cse", "legacy"))
	require.False(t, p.Matches("pdidev", "cse", "legacy2"))
	require.True(t, p.FullyLiteral())
}

func TestPattern_BareStarMatchesEverything(t *testing.T) {
	p, err := CompilePattern("*/*/*")
	require.NoError(t, err)

	require.True(t, p.Matches("org", "project", "repo"))
	require.True(t, p.Matches("org", "", "repo"))
	require.True(t, p.Matches("", "", ""))
	require.False(t, p.FullyLiteral())
}

func TestPattern_Globs(t *testing.T) {
	cases := []struct {
		segment string
		input   string
		want    bool
	}{
		{"api-*", "api-gateway", true},
		{"api-*", "API-Gateway", true},
		{"api-*", "gateway-api", false},
		{"*-svc", "billing-svc", true},
		{"*-svc", "svc", false},
		{"*core*", "hardcore-lib", true},
		{"*core*", "corelib", true},
		{"*core*", "shell", false},
		{"a*a", "aa", true},
		{"a*a", "aba", true},
		{"a*a", "a", false},
		{"a*b*c", "aXbYc", true},
		{"a*b*c", "acb", false},
		{"**", "anything", true},
		{"**", "", true},
	}

	for _, tc := range cases {
		m := compileSegment(tc.segment)
		require.Equal(t, tc.want, m.Matches(tc.input),
			"segment %q against %q", tc.segment, tc.input)
		require.False(t, m.IsLiteral())
	}
}

func TestPattern_EmptyLiteralSegmentMatchesOnlyEmpty(t *testing.T) {
	// "org//repo" pins the project level to the synthetic empty project
	// of a 2-level provider.
	p, err := CompilePattern("org//repo")
	require.NoError(t, err)

	require.True(t, p.Matches("org", "", "repo"))
	require.False(t, p.Matches("org", "CSE", "repo"))
	require.True(t, p.Project().IsLiteral())
}

func TestPattern_SegmentAccessors(t *testing.T) {
	p, err := CompilePattern("pdidev/*/leg*")
	require.NoError(t, err)

	require.True(t, p.Organization().IsLiteral())
	require.Equal(t, "pdidev", p.Organization().Literal())
	require.False(t, p.Project().IsLiteral())
	require.False(t, p.Repository().IsLiteral())
	require.False(t, p.FullyLiteral())
}
