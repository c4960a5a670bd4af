package auth

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// HTTPS authenticates http(s) remotes with basic auth.
type HTTPS struct {
	auth  *http.BasicAuth
	hosts hostFilter
}

// NewHTTPSToken returns a provider for token authentication. Most forges accept
// any non-empty username alongside a token password.
func NewHTTPSToken(token string, hosts ...string) *HTTPS {
	return NewHTTPSBasic("x-access-token", token, hosts...)
}

// NewHTTPSBasic returns a provider for username/password authentication.
func NewHTTPSBasic(username, password string, hosts ...string) *HTTPS {
	return &HTTPS{
		auth:  &http.BasicAuth{Username: username, Password: password},
		hosts: hosts,
	}
}

// Method implements Provider.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *HTTPS) Method(remoteURL string) (transport.AuthMethod, error) {
	r, err := ParseRemote(remoteURL)
	if err != nil {
		return nil, err
	}
	switch r.Scheme {
	case "https", "http":
	default:
		return nil, fmt.Errorf("https auth does not apply to %s remotes", r.Scheme)
	}
	if !p.hosts.allows(r.Host) {
		return nil, nil
	}
	return p.auth, nil
}
