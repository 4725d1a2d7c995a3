package servemux_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/servemux"
)

func TestSniffHTTP2MatchesPreface(t *testing.T) {
	matched, rewound, err := servemux.SniffHTTP2(strings.NewReader(servemux.HTTP2Preface))
	require.NoError(t, err)
	require.True(t, matched)
	replayed, err := io.ReadAll(rewound)
	require.NoError(t, err)
	require.Equal(t, servemux.HTTP2Preface, string(replayed))
}

func TestSniffHTTP2RejectsHTTP1(t *testing.T) {
	const req = "GET / HTTP/1.1\r\n"
	matched, rewound, err := servemux.SniffHTTP2(strings.NewReader(req))
	require.NoError(t, err)
	require.False(t, matched)
	replayed, err := io.ReadAll(rewound)
	require.NoError(t, err)
	require.Equal(t, req, string(replayed))
}

func TestSniffHTTP2EmptyStream(t *testing.T) {
	matched, rewound, err := servemux.SniffHTTP2(strings.NewReader(""))
	require.NoError(t, err)
	require.False(t, matched)
	replayed, err := io.ReadAll(rewound)
	require.NoError(t, err)
	require.Empty(t, replayed)
}

func TestSniffNeverReadsPastBound(t *testing.T) {
	body := strings.Repeat("x", 1000)
	r := &countingReader{r: strings.NewReader(servemux.HTTP2Preface[:10] + body)}
	_, _, err := servemux.SniffHTTP2(r)
	require.NoError(t, err)
	require.LessOrEqual(t, r.read, 2*len(servemux.HTTP2Preface))
}

type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}
