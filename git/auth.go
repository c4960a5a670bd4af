package git

import (
	gossh "golang.org/x/crypto/ssh"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git/internal/auth"
)

// TokenAuth authenticates https remotes with an access token. When hosts are
// given (shell patterns like "*.github.com") other hosts get no credentials.
func TokenAuth(token string, hosts ...string) AuthProvider {
	return auth.NewHTTPSToken(token, hosts...)
}

// BasicAuth authenticates https remotes with a username and password.
func BasicAuth(username, password string, hosts ...string) AuthProvider {
	return auth.NewHTTPSBasic(username, password, hosts...)
}

// SSHKeyAuth authenticates ssh remotes with a private key file. A nil
// hostKeys verifies servers against the user's known_hosts.
func SSHKeyAuth(keyFile, passphrase string, hostKeys gossh.HostKeyCallback, hosts ...string) AuthProvider {
	p := auth.NewSSHKey(keyFile, passphrase, hosts...)
	p.HostKeyCallback = hostKeys
	return p
}

// SSHAgentAuth authenticates ssh remotes through the running ssh agent.
func SSHAgentAuth(hosts ...string) AuthProvider {
	return auth.NewSSHAgent(hosts...)
}

// ChainAuth tries providers in order and uses the first that has credentials
// for a remote.
func ChainAuth(providers ...AuthProvider) AuthProvider {
	chain := make(auth.Chain, 0, len(providers))
	for _, p := range providers {
		chain = append(chain, p)
	}
	return chain
}
