package utils

import (
	"fmt"
	"net"
	"net/url"
)

// Parses a listen address such as "tcp://:8080" or "unix:///run/x.sock"
// into a network and an address for net.Listen. A TCP address without a
// port gets defaultPort.
func ParseListenURL(address string, defaultPort int) (network, host string, err error) {
	uri, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrParse, err)
	}

	switch uri.Scheme {
	case "tcp", "tcp4", "tcp6":
		host = uri.Host
		if uri.Port() == "" {
			host = fmt.Sprintf("%s:%d", uri.Hostname(), defaultPort)
		}
	case "unix":
		host = uri.Path
	default:
		return "", "", fmt.Errorf("%w: unsupported protocol %q", ErrParse, uri.Scheme)
	}

	return uri.Scheme, host, nil
}

// Opens a listener on a URL accepted by ParseListenURL.
func Listen(address string, defaultPort int) (net.Listener, error) {
	network, host, err := ParseListenURL(address, defaultPort)
	if err != nil {
		return nil, err
	}

	socket, err := net.Listen(network, host)
	if err != nil {
		return nil, err
	}

	if unix, ok := socket.(*net.UnixListener); ok {
		unix.SetUnlinkOnClose(true)
	}
	return socket, nil
}
