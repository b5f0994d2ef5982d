package tgc

import (
	"context"
	"net"
	"net/url"
	"sync"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/dcs"
	"github.com/iyear/connectproxy"
	"golang.org/x/net/proxy"
)

var registerConnect sync.Once

// proxyDialer returns a dial function going through rawURL. socks5 proxies
// are handled by x/net/proxy, http and https ones by connectproxy.
func proxyDialer(rawURL string) (dcs.DialFunc, error) {
	if rawURL == "" {
		return proxy.Direct.DialContext, nil
	}

	registerConnect.Do(func() {
		connectproxy.Register(&connectproxy.Config{InsecureSkipVerify: true})
	})

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse proxy url")
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, errors.Wrapf(err, "proxy %s", u.Scheme)
	}

	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}, nil
}
