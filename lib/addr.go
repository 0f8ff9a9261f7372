package lib

import (
	"net/url"
	"strings"

	"github.com/gravitational/trace"
)

// AddrToURL turns a bare host[:port][/path] into a base URL suitable for
// resolving API endpoints against. HTTPS is assumed when no scheme is given
// and the path always ends with a slash.
func AddrToURL(addr string) (*url.URL, error) {
	var (
		result *url.URL
		err    error
	)
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, trace.BadParameter("empty address")
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "https://" + addr
	}
	if result, err = url.Parse(addr); err != nil {
		return nil, trace.Wrap(err)
	}
	if result.Host == "" {
		return nil, trace.BadParameter("address %q has no host", addr)
	}
	if result.Scheme == "https" && result.Port() == "443" {
		// Cut off redundant :443
		result.Host = result.Hostname()
	}
	if !strings.HasSuffix(result.Path, "/") {
		result.Path += "/"
	}
	return result, nil
}
