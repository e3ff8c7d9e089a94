package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanNormalizesWhitespace(t *testing.T) {
	require.Equal(t, "", Clean("   "))
	require.Equal(t, "hello world", Clean("  hello   world\t"))
	require.Equal(t, "a b c", Clean("a\nb\nc"))
}

func TestJoinSimpleSegments(t *testing.T) {
	require.Equal(t, "", Join(nil))
	require.Equal(t, "", Join([]string{"", "   "}))
	require.Equal(t, "hello there", Join([]string{"hello", "there"}))
}

func TestJoinMergesContinuations(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{name: "exact duplicate dropped", segments: []string{"how are", "how are"}, want: "how are"},
		{name: "growing continuation replaces", segments: []string{"how are", "how are you"}, want: "how are you"},
		{name: "shrinking continuation kept", segments: []string{"how are you", "how are"}, want: "how are you"},
		{name: "distinct segments joined", segments: []string{"how are you", "I am fine"}, want: "how are you I am fine"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Join(tc.segments))
		})
	}
}
