// Package auth resolves credentials for remote transports.
// Providers are chosen per remote URL, so one process can publish to several
// hosts with different credentials.
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider returns the auth method for a remote URL. A nil method with a nil
// error means the provider has nothing for that URL.
type Provider interface {
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Remote is the parsed form of a remote URL.
type Remote struct {
	Scheme string
	Host   string
}

// ParseRemote understands both URL form and the scp-like "user@host:path" form.
func ParseRemote(remoteURL string) (Remote, error) {
	if remoteURL == "" {
		return Remote{}, errors.New("empty remote URL")
	}
	if !strings.Contains(remoteURL, "://") {
		if at := strings.Index(remoteURL, "@"); at >= 0 {
			rest := remoteURL[at+1:]
			if colon := strings.Index(rest, ":"); colon > 0 {
				return Remote{Scheme: "ssh", Host: rest[:colon]}, nil
			}
		}
		return Remote{Scheme: "file"}, nil
	}

	u, err := url.Parse(remoteURL)
	if err != nil {
		return Remote{}, fmt.Errorf("invalid URL: %w", err)
	}
	return Remote{Scheme: u.Scheme, Host: u.Hostname()}, nil
}

// hostFilter restricts a provider to hosts matching shell patterns such as
// "*.github.com". An empty filter allows every host.
type hostFilter []string

func (f hostFilter) allows(host string) bool {
	if len(f) == 0 {
		return true
	}
	for _, pattern := range f {
		if ok, _ := path.Match(pattern, host); ok {
			return true
		}
	}
	return false
}

// Chain tries providers in order and returns the first method found.
type Chain []Provider

// Method implements Provider. Errors from individual providers are skipped
// as long as a later provider succeeds.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (c Chain) Method(remoteURL string) (transport.AuthMethod, error) {
	var errs []error
	for _, p := range c {
		m, err := p.Method(remoteURL)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, errors.Join(errs...)
}
