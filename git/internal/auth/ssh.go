package auth

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// DefaultSSHUser is the login used by every major forge.
const DefaultSSHUser = "git"

// SSH authenticates ssh remotes with a private key or the ssh agent.
type SSH struct {
	// User is the remote login, DefaultSSHUser when empty.
	User string

	// KeyFile or Key selects key authentication; neither means agent.
	KeyFile    string
	Key        []byte
	Passphrase string

	// HostKeyCallback verifies the server. nil uses known_hosts.
	HostKeyCallback gossh.HostKeyCallback

	hosts hostFilter
}

// NewSSHKey returns a provider reading a private key from keyFile.
func NewSSHKey(keyFile, passphrase string, hosts ...string) *SSH {
	return &SSH{KeyFile: keyFile, Passphrase: passphrase, hosts: hosts}
}

// NewSSHAgent returns a provider using the running ssh agent.
func NewSSHAgent(hosts ...string) *SSH {
	return &SSH{hosts: hosts}
}

// Method implements Provider.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *SSH) Method(remoteURL string) (transport.AuthMethod, error) {
	r, err := ParseRemote(remoteURL)
	if err != nil {
		return nil, err
	}
	switch r.Scheme {
	case "ssh", "git+ssh":
	default:
		return nil, fmt.Errorf("ssh auth does not apply to %s remotes", r.Scheme)
	}
	if !p.hosts.allows(r.Host) {
		return nil, nil
	}

	user := p.User
	if user == "" {
		user = DefaultSSHUser
	}

	var (
		keys *ssh.PublicKeys
		cb   *ssh.PublicKeysCallback
	)
	switch {
	case p.KeyFile != "":
		keys, err = ssh.NewPublicKeysFromFile(user, p.KeyFile, p.Passphrase)
	case len(p.Key) > 0:
		keys, err = ssh.NewPublicKeys(user, p.Key, p.Passphrase)
	default:
		cb, err = ssh.NewSSHAgentAuth(user)
	}
	if err != nil {
		return nil, fmt.Errorf("load ssh credentials: %w", err)
	}

	if keys != nil {
		if p.HostKeyCallback != nil {
			keys.HostKeyCallback = p.HostKeyCallback
		}
		return keys, nil
	}
	if cb == nil {
		return nil, errors.New("no ssh credentials")
	}
	if p.HostKeyCallback != nil {
		cb.HostKeyCallback = p.HostKeyCallback
	}
	return cb, nil
}
