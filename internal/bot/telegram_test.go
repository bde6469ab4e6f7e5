package bot

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "exactly ten", truncate("exactly ten", 11))

	got := truncate("a question that runs well past the cutoff", 20)
	require.Equal(t, 20, utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// Multibyte questions must never be cut mid-rune.
	got := truncate("¿Ganará el União São João el campeonato?", 20)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, 20, utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "..."))

	require.Equal(t, "日本語", truncate("日本語", 5))
}
