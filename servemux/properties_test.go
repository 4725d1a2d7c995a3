package servemux_test

import (
	"net"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/servemux"
)

func TestListenPropertiesDefaultPortLoopbackCollapsesToLocalhost(t *testing.T) {
	props := servemux.ListenPropertiesFromAddr(servemux.StreamTCP, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 80})
	require.Equal(t, "localhost", props.FallbackHost)
}

func TestListenPropertiesNonDefaultPortKeepsPort(t *testing.T) {
	props := servemux.ListenPropertiesFromAddr(servemux.StreamTCP, &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080})
	require.Equal(t, "localhost:8080", props.FallbackHost)
}

func TestRequestAuthorityPrefersURIOnDefaultPort(t *testing.T) {
	conn := servemux.ConnectionProperties{StreamType: servemux.StreamTCP, LocalPort: portPtr(80)}
	u, _ := url.Parse("http://example.com:80/x")
	authority, ok := servemux.RequestAuthority(conn, u, http.Header{"Host": {"other.example"}})
	require.True(t, ok)
	require.Equal(t, "example.com", authority)
}

func TestRequestAuthorityFallsBackToHostHeader(t *testing.T) {
	conn := servemux.ConnectionProperties{StreamType: servemux.StreamTCP, LocalPort: portPtr(8080)}
	authority, ok := servemux.RequestAuthority(conn, &url.URL{}, http.Header{"Host": {"example.com:8080"}})
	require.True(t, ok)
	require.Equal(t, "example.com:8080", authority)
}

func TestRequestAuthorityUnixNeverConsultsURIOrHost(t *testing.T) {
	conn := servemux.ConnectionProperties{StreamType: servemux.StreamUnix}
	u, _ := url.Parse("http://example.com/x")
	_, ok := servemux.RequestAuthority(conn, u, http.Header{"Host": {"example.com"}})
	require.False(t, ok)
}

func portPtr(p uint32) *uint32 { return &p }
