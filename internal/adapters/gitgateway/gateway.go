// Package gitgateway clones repositories and manipulates their working trees with go-git.
package gitgateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"

	"github.com/target/repo-analyzer/internal/core"
	"github.com/target/repo-analyzer/internal/domain/model"
)

// DefaultCloneDepth is deep enough to very likely include the head's first parent.
const DefaultCloneDepth = 10

var (
	// ErrUnsupportedURL is returned for inputs that are not http(s) or git@ URLs.
	ErrUnsupportedURL = errors.New("unsupported repository URL: only http://, https:// and git@ URLs are supported")
	// ErrRevisionNotFound is returned when a revision cannot be resolved to a commit.
	ErrRevisionNotFound = errors.New("revision not found")
)

// Options configures a Gateway.
type Options struct {
	ReposDir       string
	Depth          int              // Optional: defaults to DefaultCloneDepth
	SSHKeyPath     string           // Optional: private key used for git@ URLs
	SSHKeyPassword string           // Optional
	Now            func() time.Time // Optional: clock used for directory suffixes
	Logger         *slog.Logger     // Optional
}

// Gateway implements core.RepositoryGateway.
type Gateway struct {
	reposDir    string
	depth       int
	sshKeyPath  string
	sshPassword string
	now         func() time.Time
	logger      *slog.Logger
}

var _ core.RepositoryGateway = (*Gateway)(nil)

// New constructs a Gateway.
func New(opts Options) (*Gateway, error) {
	if strings.TrimSpace(opts.ReposDir) == "" {
		return nil, errors.New("ReposDir is required")
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = DefaultCloneDepth
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		reposDir:    opts.ReposDir,
		depth:       depth,
		sshKeyPath:  opts.SSHKeyPath,
		sshPassword: opts.SSHKeyPassword,
		now:         now,
		logger:      logger.With("component", "git_gateway"),
	}, nil
}

// RepoBaseName returns the last path element of a repository URL without a ".git" suffix.
func RepoBaseName(raw string) (string, error) {
	u, err := giturls.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse git URL: %w", err)
	}
	p := strings.TrimSuffix(strings.TrimRight(u.Path, "/"), ".git")
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("repository URL %q has no repository name", raw)
	}
	return name, nil
}

// Acquire shallow-clones repoURL into <ReposDir>/<name>_<millis>. Any partially created
// directory is removed before a clone error is returned.
func (g *Gateway) Acquire(ctx context.Context, repoURL string) (core.WorkingTree, error) {
	if !model.SupportedRepoURL(repoURL) {
		return core.WorkingTree{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, repoURL)
	}
	name, err := RepoBaseName(repoURL)
	if err != nil {
		return core.WorkingTree{}, err
	}
	if mkErr := os.MkdirAll(g.reposDir, 0o755); mkErr != nil {
		return core.WorkingTree{}, fmt.Errorf("create repositories directory: %w", mkErr)
	}
	dir, err := g.reserveDir(name)
	if err != nil {
		return core.WorkingTree{}, err
	}

	auth, err := g.auth(repoURL)
	if err != nil {
		g.removePartial(ctx, dir)
		return core.WorkingTree{}, err
	}

	g.logger.InfoContext(ctx, "cloning repository", "url", repoURL, "depth", g.depth, "dir", dir)
	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          repoURL,
		Auth:         auth,
		Depth:        g.depth,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		g.removePartial(ctx, dir)
		return core.WorkingTree{}, fmt.Errorf("clone %s: %w", repoURL, err)
	}
	g.logger.InfoContext(ctx, "clone completed", "url", repoURL)
	return core.WorkingTree{Path: dir, RepoName: name}, nil
}

// reserveDir creates a fresh directory named after the repository and the current time,
// bumping the suffix when a concurrent job already claimed it.
func (g *Gateway) reserveDir(name string) (string, error) {
	suffix := g.now().UnixMilli()
	for range 100 {
		dir := filepath.Join(g.reposDir, name+"_"+strconv.FormatInt(suffix, 10))
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("create working tree directory: %w", err)
		}
		suffix++
	}
	return "", fmt.Errorf("could not reserve a working tree directory for %s", name)
}

func (g *Gateway) removePartial(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		g.logger.WarnContext(ctx, "failed to remove partial clone", "dir", dir, "error", err)
	}
}

//nolint:ireturn // go-git expects the transport.AuthMethod interface.
func (g *Gateway) auth(repoURL string) (transport.AuthMethod, error) {
	if g.sshKeyPath == "" || !strings.HasPrefix(repoURL, "git@") {
		return nil, nil
	}
	if _, err := os.Stat(g.sshKeyPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	keys, err := ssh.NewPublicKeysFromFile("git", g.sshKeyPath, g.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("load SSH key: %w", err)
	}
	return keys, nil
}

// Open opens an existing working tree.
//
//nolint:ireturn // callers depend on the core.Repository port.
func (g *Gateway) Open(_ context.Context, treePath string) (core.Repository, error) {
	repo, err := git.PlainOpen(treePath)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", treePath, err)
	}
	return &Repository{repo: repo, logger: g.logger.With("tree", filepath.Base(treePath))}, nil
}

// Repository wraps an opened go-git repository.
type Repository struct {
	repo   *git.Repository
	logger *slog.Logger
}

var _ core.Repository = (*Repository)(nil)

// ResolveHead resolves HEAD to a commit id.
func (r *Repository) ResolveHead(ctx context.Context) (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: HEAD: %w", ErrRevisionNotFound, err)
	}
	r.logger.InfoContext(ctx, "resolved revision", "revision", "HEAD", "commit", ref.Hash().String())
	return ref.Hash().String(), nil
}

// ResolveParent returns the first parent of commit. A root commit, or a parent cut off by the
// shallow clone boundary, yields ok=false.
func (r *Repository) ResolveParent(ctx context.Context, commit string) (string, bool, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %w", ErrRevisionNotFound, commit, err)
	}
	if c.NumParents() == 0 {
		r.logger.InfoContext(ctx, "commit has no parents", "commit", commit)
		return "", false, nil
	}
	parent := c.ParentHashes[0]
	if _, err := r.repo.CommitObject(parent); err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			r.logger.WarnContext(ctx, "parent commit outside shallow history", "commit", commit, "parent", parent.String())
			return "", false, nil
		}
		return "", false, fmt.Errorf("load parent %s: %w", parent, err)
	}
	r.logger.InfoContext(ctx, "found parent commit", "commit", commit, "parent", parent.String())
	return parent.String(), true, nil
}

// Checkout force-checks out commit in the working tree.
func (r *Repository) Checkout(ctx context.Context, commit string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commit), Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", commit, err)
	}
	return nil
}

// Close releases file handles held by the repository storage.
func (r *Repository) Close() error {
	if c, ok := r.repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
