// Package servemux implements the HTTP serving prefix demux and request
// property derivation: a bounded prefix sniffer that replays what it
// read, and listener/connection/request property extraction with a fixed
// authority-selection priority (URI authority, then Host header). A request
// with neither gets no authority: RequestAuthority does not fall back to the
// listener's FallbackHost. Built against valyala/fasthttp's connection
// types.
package servemux

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// StreamType is the transport kind a listener accepted.
type StreamType int

const (
	StreamTCP StreamType = iota
	StreamTLS
	StreamUnix
	StreamVsock
)

func (s StreamType) Scheme() string {
	switch s {
	case StreamTCP:
		return "http://"
	case StreamTLS:
		return "https://"
	case StreamUnix:
		return "http+unix://"
	case StreamVsock:
		return "http+vsock://"
	default:
		return "http://"
	}
}

// ListenProperties are derived once per listener.
type ListenProperties struct {
	Scheme       string
	FallbackHost string
	LocalPort    *uint32
	StreamType   StreamType
}

// ConnectionProperties are derived once per accepted connection.
type ConnectionProperties struct {
	PeerAddress string
	PeerPort    *uint32
	LocalPort   *uint32
	StreamType  StreamType
}

// ListenPropertiesFromAddr builds ListenProperties from a listener's own
// local address: the default port for the stream type is omitted from the fallback host,
// and a loopback/unspecified IP collapses to "localhost".
func ListenPropertiesFromAddr(stype StreamType, local net.Addr) ListenProperties {
	props := ListenProperties{Scheme: stype.Scheme(), StreamType: stype}

	tcpAddr, ok := local.(*net.TCPAddr)
	if !ok {
		props.FallbackHost = local.String()
		return props
	}
	port := uint32(tcpAddr.Port)
	props.LocalPort = &port

	isDefaultPort := (stype == StreamTLS && tcpAddr.Port == 443) || (stype == StreamTCP && tcpAddr.Port == 80)
	loopbackOrUnspecified := tcpAddr.IP.IsLoopback() || tcpAddr.IP.IsUnspecified()

	switch {
	case isDefaultPort && loopbackOrUnspecified:
		props.FallbackHost = "localhost"
	case isDefaultPort:
		props.FallbackHost = tcpAddr.IP.String()
	case loopbackOrUnspecified:
		props.FallbackHost = "localhost:" + strconv.Itoa(tcpAddr.Port)
	default:
		props.FallbackHost = tcpAddr.String()
	}
	return props
}

// ConnectionPropertiesFromAddr builds ConnectionProperties for an accepted
// connection given the listener's properties and the peer's address.
func ConnectionPropertiesFromAddr(listen ListenProperties, peer net.Addr) ConnectionProperties {
	props := ConnectionProperties{LocalPort: listen.LocalPort, StreamType: listen.StreamType}
	tcpAddr, ok := peer.(*net.TCPAddr)
	if !ok {
		props.PeerAddress = "unix"
		if peer != nil {
			props.PeerAddress = peer.String()
		}
		return props
	}
	port := uint32(tcpAddr.Port)
	props.PeerPort = &port
	props.PeerAddress = tcpAddr.IP.String()
	return props
}

// RequestAuthority selects the authority for an incoming request, in
// priority order: Unix/vsock
// listeners never consult the URI authority or Host header (return ""
// with ok=false); otherwise the URI authority wins, but only its bare host
// when the connection's port is exactly the stream type's default port;
// otherwise the Host header, used as net/http decoded it; otherwise no
// authority at all.
func RequestAuthority(conn ConnectionProperties, u *url.URL, headers http.Header) (string, bool) {
	if conn.StreamType == StreamUnix || conn.StreamType == StreamVsock {
		return "", false
	}

	var port uint32
	if conn.LocalPort != nil {
		port = *conn.LocalPort
	}

	if u != nil && u.Host != "" {
		switch conn.StreamType {
		case StreamTCP:
			if port == 80 {
				return hostOnly(u.Host), true
			}
		case StreamTLS:
			if port == 443 {
				return hostOnly(u.Host), true
			}
		}
		return u.Host, true
	}

	// req_host falls back to mapping raw bytes to chars one-by-one when the
	// Host header isn't valid UTF-8 text, rather than rejecting the request;
	// net/http's header parser already hands us a decoded string, so there is
	// no separate lenient path to take here.
	if host := headers.Get("Host"); host != "" {
		return host, true
	}

	return "", false
}

func hostOnly(authority string) string {
	if i := strings.LastIndexByte(authority, ':'); i >= 0 {
		return authority[:i]
	}
	return authority
}
