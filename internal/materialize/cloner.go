// SPDX-License-Identifier: MPL-2.0

package materialize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/adhd-framework/adhd/pkg/source"
)

type (
	// Cloner produces a working copy of a source in dest. dest is an empty
	// directory when Clone is called.
	Cloner interface {
		Clone(ctx context.Context, u source.URL, dest string) error
	}

	// GitCloner clones remote repositories with go-git.
	GitCloner struct {
		// Shallow limits the clone to the tip commit.
		Shallow bool
		// Ref is the branch to check out. Empty or HEAD uses the remote HEAD.
		Ref string

		sshAuth  transport.AuthMethod
		httpAuth transport.AuthMethod
	}

	// DirCloner copies local directory sources.
	DirCloner struct{}

	// SourceCloner dispatches to Remote or Local by source kind.
	SourceCloner struct {
		Remote Cloner
		Local  Cloner
	}
)

// branchReference maps a configured ref to the branch to check out. The
// remote HEAD is requested with an empty name.
func branchReference(ref string) plumbing.ReferenceName {
	if ref == "" || ref == string(plumbing.HEAD) {
		return ""
	}
	return plumbing.NewBranchReferenceName(ref)
}

// NewGitCloner creates a GitCloner with credentials discovered from
// ~/.ssh and the GITHUB_TOKEN, GITLAB_TOKEN or GIT_TOKEN variables.
func NewGitCloner(shallow bool, ref string) *GitCloner {
	return &GitCloner{
		Shallow:  shallow,
		Ref:      ref,
		sshAuth:  trySSHAuth(),
		httpAuth: tryHTTPAuth(),
	}
}

// Clone clones u into dest.
func (c *GitCloner) Clone(ctx context.Context, u source.URL, dest string) error {
	opts := &git.CloneOptions{
		URL:  string(u),
		Auth: c.authFor(u),
	}
	if c.Shallow {
		opts.Depth = 1
		opts.SingleBranch = true
	}
	if name := branchReference(c.Ref); name != "" {
		opts.ReferenceName = name
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		return fmt.Errorf("git clone %s: %w", u, err)
	}
	return nil
}

func (c *GitCloner) authFor(u source.URL) transport.AuthMethod {
	s := string(u)
	if strings.HasPrefix(s, "git@") || strings.HasPrefix(s, "ssh://") {
		return c.sshAuth
	}
	return c.httpAuth
}

// trySSHAuth loads the first usable key from the common locations.
func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(homeDir, ".ssh", name)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}
	return nil
}

// tryHTTPAuth reads a token from the environment.
func tryHTTPAuth() transport.AuthMethod {
	tokens := []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, t := range tokens {
		if token := os.Getenv(t.env); token != "" {
			return &http.BasicAuth{Username: t.user, Password: token}
		}
	}
	return nil
}

// Clone copies the local source directory into dest.
func (DirCloner) Clone(ctx context.Context, u source.URL, dest string) error {
	src := u.LocalPath()
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	return copyTree(ctx, src, dest, nil)
}

// Clone routes u to the cloner for its kind.
func (c SourceCloner) Clone(ctx context.Context, u source.URL, dest string) error {
	next := c.Remote
	if u.Kind() == source.KindLocal {
		next = c.Local
	}
	if next == nil {
		return fmt.Errorf("no cloner for %s sources", u.Kind())
	}
	return next.Clone(ctx, u, dest)
}
