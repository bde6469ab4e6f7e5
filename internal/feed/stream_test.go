package feed

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamStopIsIdempotent(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1/ws")
	require.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
}

func TestStreamSubscribeRequiresConnection(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1/ws")
	require.Error(t, s.Subscribe("mkt-1", "token-1"))
}
