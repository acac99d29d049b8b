// Package util provides shared helpers for the Payload MCP server, currently
// the construction of proxy- and TLS-aware HTTP clients.
package util

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/craftpad/payload-mcp/internal/config"
)

// NewHTTPClient builds an HTTP client from the configuration. It supports
// SOCKS5, HTTP, and HTTPS proxies, optional TLS verification, and bypassing
// the proxy for localhost targets so the local Payload instance and the
// interactive auth page remain reachable behind corporate proxies.
func NewHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{}

	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			applyProxy(transport, proxyURL, cfg.BypassLocalhostProxy)
		} else {
			log.Errorf("invalid proxy url %q: %v", cfg.ProxyURL, err)
		}
	}

	return &http.Client{
		Timeout:   cfg.Timeout(),
		Transport: transport,
	}
}

func applyProxy(transport *http.Transport, proxyURL *url.URL, bypassLocalhost bool) {
	switch proxyURL.Scheme {
	case "socks5":
		username := proxyURL.User.Username()
		password, _ := proxyURL.User.Password()
		proxyAuth := &proxy.Auth{User: username, Password: password}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return
		}
		direct := &net.Dialer{}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if bypassLocalhost && isLocalhost(addr) {
				return direct.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	case "http", "https":
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if bypassLocalhost && isLocalhost(req.URL.Host) {
				return nil, nil
			}
			return proxyURL, nil
		}
	}
}

func isLocalhost(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
