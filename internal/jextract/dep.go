package jextract

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

var depShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var (
	errIllegalDep = errors.New("empty or illegal dependency string")
	errArchiveDep = errors.New("archive dependencies are not supported, use a git source or a local path")
)

// depLocation says where a dependency lives once fetched, and whether it has
// to be cloned to get there. Local paths are used in place.
func depLocation(source, name, basedir, depsDir string) (dir string, remote bool, err error) {
	switch {
	case source == "":
		return "", false, errIllegalDep
	case strings.HasPrefix(source, gitPrefix):
		return filepath.Join(depsDir, name), true, nil
	case isURL(source):
		return "", false, errArchiveDep
	}
	for shortcut := range depShortcuts {
		if strings.HasPrefix(source, shortcut) {
			return filepath.Join(depsDir, name), true, nil
		}
	}
	if filepath.IsAbs(source) {
		return filepath.Clean(source), false, nil
	}
	return filepath.Join(basedir, source), false, nil
}

// cloneURL expands a `git:` or shortcut dependency into a clone URL
func cloneURL(source string) string {
	if strings.HasPrefix(source, gitPrefix) {
		return source[len(gitPrefix):]
	}
	for shortcut, url := range depShortcuts {
		if strings.HasPrefix(source, shortcut) {
			return url + source[len(shortcut):]
		}
	}
	return source
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type gitURL struct {
	cleanURL    string
	branch      string
	commitOrTag string
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func parseGitURL(rawURL string) (res gitURL) {
	parts := strings.SplitN(rawURL, "#", 2)
	baseURL := parts[0]
	if len(parts) == 2 {
		res.commitOrTag = parts[1]
	}

	// only look for a branch after the host, `git@host:` urls carry an @ too
	at := strings.LastIndex(baseURL, "@")
	if at > strings.LastIndex(baseURL, "/") {
		res.cleanURL, res.branch = baseURL[:at], baseURL[at+1:]
	} else {
		res.cleanURL = baseURL
	}

	if !strings.HasSuffix(res.cleanURL, ".git") {
		res.cleanURL += ".git"
	}

	return
}

// cloneGitRepo clones a Git remote into the specified directory
func cloneGitRepo(rawURL, toWhere string, progress io.Writer) error {
	parsedURL := parseGitURL(rawURL)

	cloneOptions := &git.CloneOptions{
		URL:               parsedURL.cleanURL,
		Progress:          progress,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if parsedURL.commitOrTag == "" {
		cloneOptions.Depth = 1 // only the latest commit is needed
	}

	if parsedURL.branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(parsedURL.branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(toWhere, cloneOptions)
	if err != nil {
		return err
	}

	if parsedURL.commitOrTag != "" {
		w, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("could not get worktree: %w", err)
		}

		revision := parsedURL.commitOrTag
		hash, err := repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return fmt.Errorf("could not resolve revision `%s`: %w", revision, err)
		}

		err = w.Checkout(&git.CheckoutOptions{
			Hash:  *hash,
			Force: true,
		})
		if err != nil {
			return fmt.Errorf("failed to checkout `%s`: %w", revision, err)
		}
	}

	return nil
}
