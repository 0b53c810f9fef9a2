package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/sockrelay/sockrelay/server/internal/health"
)

// recordingCloser notes whether health was already draining when closed.
type recordingCloser struct {
	hs          *health.Server
	closed      bool
	sawDraining bool
}

func (c *recordingCloser) Close() {
	c.closed = true
	c.sawDraining = c.hs.Draining()
}

func TestShutdown_HealthFlipsBeforeEndpointsClose(t *testing.T) {
	hs := health.New("text", "binary")
	text := &recordingCloser{hs: hs}
	bin := &recordingCloser{hs: hs}

	err := shutdown(hs, []closer{text, bin}, &http.Server{}, grpc.NewServer())
	require.NoError(t, err)

	assert.True(t, hs.Draining())
	for _, c := range []*recordingCloser{text, bin} {
		assert.True(t, c.closed)
		assert.True(t, c.sawDraining, "endpoint closed while health still SERVING")
	}
}
