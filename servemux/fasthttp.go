// Adapter from valyala/fasthttp's connection types to the
// listener/connection/request properties in properties.go, so the demux
// and authority-selection logic operates directly on a fasthttp server
// rather than std net/http's narrower request view.
package servemux

import (
	"net"
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"
)

// streamTypeOf classifies a fasthttp request context's transport, the
// input ListenPropertiesFromAddr/ConnectionPropertiesFromAddr need but
// that fasthttp itself only exposes indirectly (TLS vs. plain, and
// best-effort unix-socket detection via the address network).
func streamTypeOf(ctx *fasthttp.RequestCtx) StreamType {
	if ctx.IsTLS() {
		return StreamTLS
	}
	if local := ctx.LocalAddr(); local != nil && local.Network() == "unix" {
		return StreamUnix
	}
	return StreamTCP
}

// ListenPropertiesFromFastHTTP derives ListenProperties from the context's
// local address, as FastHTTPRequestProperties does per-request.
func ListenPropertiesFromFastHTTP(ctx *fasthttp.RequestCtx) ListenProperties {
	stype := streamTypeOf(ctx)
	local := ctx.LocalAddr()
	if local == nil {
		return ListenProperties{Scheme: stype.Scheme(), StreamType: stype}
	}
	if stype == StreamUnix {
		return ListenProperties{Scheme: stype.Scheme(), StreamType: stype, FallbackHost: local.String()}
	}
	return ListenPropertiesFromAddr(stype, local)
}

// FastHTTPRequestProperties derives the full (listen, connection,
// authority) triple for one fasthttp request, combining
// ListenPropertiesFromFastHTTP, ConnectionPropertiesFromAddr and
// RequestAuthority into the single call a request handler needs.
func FastHTTPRequestProperties(ctx *fasthttp.RequestCtx) (ListenProperties, ConnectionProperties, string, bool) {
	listen := ListenPropertiesFromFastHTTP(ctx)
	var peer net.Addr = ctx.RemoteAddr()
	conn := ConnectionPropertiesFromAddr(listen, peer)

	u, _ := url.Parse(string(ctx.RequestURI()))
	headers := http.Header{}
	if host := ctx.Request.Header.Peek("Host"); len(host) > 0 {
		headers.Set("Host", string(host))
	}
	authority, ok := RequestAuthority(conn, u, headers)
	return listen, conn, authority, ok
}
