package main

import (
	"flag"

	"github.com/valyala/fasthttp"

	"github.com/coreruntime/kernel/artifactcache"
	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtconfig"
	"github.com/coreruntime/kernel/rtlog"
	"github.com/coreruntime/kernel/servemux"
)

// serveCommand runs the HTTP surface: a fasthttp listener whose handler
// derives listener/connection/request properties per request before
// dispatching to the protocol-specific handler.
func serveCommand(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := rtconfig.LoadOrDefault(defaultCacheDirFlag())
	httpCache := artifactcache.NewHTTPCache(cfg.CacheDir + "/http")

	handler := func(ctx *fasthttp.RequestCtx) {
		listen, conn, authority, ok := servemux.FastHTTPRequestProperties(ctx)
		rtlog.Infof("kerneld serve: %s request on %s (authority=%q ok=%v, peer=%s)",
			ctx.Method(), listen.Scheme, authority, ok, conn.PeerAddress)

		if cached, meta, found, err := httpCache.Get(string(ctx.RequestURI())); err == nil && found {
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBody(cached)
			_ = meta
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}

	rtlog.Infof("kerneld: serving on %s", *addr)
	if err := fasthttp.ListenAndServe(*addr, handler); err != nil {
		return kerrors.Wrap(kerrors.KindNetwork, err, "fasthttp listen on %s", *addr)
	}
	return nil
}
