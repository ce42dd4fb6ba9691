// Package github reads résumé files from a GitHub repository.
//
// The repository tree is fetched in one request and every matching file
// under the configured directory is downloaded as a blob and converted to
// plain text with the normalisers registry.
package github

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/cvsearch/internal/logger"
	"github.com/custodia-labs/cvsearch/internal/normalisers"
)

// MaxFileSize is the largest file fetched. Bigger blobs are skipped.
const MaxFileSize = 1 << 20

// File is one résumé read from the repository.
type File struct {
	Path       string
	DocumentID string
	URL        string
	Text       string
}

// Source is a directory of résumés in a repository.
type Source struct {
	client   *Client
	owner    string
	repo     string
	ref      string
	dir      string
	exts     map[string]bool
	registry *normalisers.Registry
}

// ParseRepo splits "owner/name".
func ParseRepo(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepo, s)
	}
	return owner, strings.TrimSuffix(repo, ".git"), nil
}

// NewSource reads files under dir of owner/repo at ref. An empty ref
// means the default branch and an empty dir the whole repository. With
// no extensions every format the registry converts is read.
func NewSource(client *Client, repository, ref, dir string, exts ...string) (*Source, error) {
	owner, repo, err := ParseRepo(repository)
	if err != nil {
		return nil, err
	}

	registry := normalisers.Default()
	if len(exts) == 0 {
		exts = registry.Extensions()
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}

	dir = strings.Trim(path.Clean("/"+dir), "/")
	return &Source{
		client:   client,
		owner:    owner,
		repo:     repo,
		ref:      ref,
		dir:      dir,
		exts:     set,
		registry: registry,
	}, nil
}

// WithRegistry replaces the normalisers used to convert files to text.
func (s *Source) WithRegistry(r *normalisers.Registry) *Source {
	s.registry = r
	return s
}

// Name returns owner/repo.
func (s *Source) Name() string {
	return s.owner + "/" + s.repo
}

// DocumentID maps a repository path to its path relative to the source
// directory, without extension.
func (s *Source) DocumentID(p string) string {
	rel := p
	if s.dir != "" {
		rel = strings.TrimPrefix(p, s.dir+"/")
	}
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// Fetch reads every matching file, ordered by path. Files that cannot be
// downloaded or converted are logged and skipped.
func (s *Source) Fetch(ctx context.Context) ([]File, error) {
	repository, err := s.client.Repository(ctx, s.owner, s.repo)
	if err != nil {
		return nil, err
	}
	ref := s.ref
	if ref == "" {
		ref = repository.GetDefaultBranch()
	}
	htmlURL := repository.GetHTMLURL()
	if htmlURL == "" {
		htmlURL = fmt.Sprintf("https://github.com/%s/%s", s.owner, s.repo)
	}

	tree, err := s.client.Tree(ctx, s.owner, s.repo, ref)
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		logger.Warn("tree of %s is truncated, some files will be missing", s.Name())
	}

	var files []File
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.matches(entry) {
			continue
		}
		p := entry.GetPath()
		if entry.GetSize() > MaxFileSize {
			logger.Warn("skipping %s: %d bytes", p, entry.GetSize())
			continue
		}

		data, err := s.client.Blob(ctx, s.owner, s.repo, entry.GetSHA())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping %s: %v", p, err)
			continue
		}
		text, err := s.registry.Text(ctx, p, data)
		if err != nil {
			logger.Warn("skipping %s: %v", p, err)
			continue
		}

		files = append(files, File{
			Path:       p,
			DocumentID: s.DocumentID(p),
			URL:        fmt.Sprintf("%s/blob/%s/%s", htmlURL, ref, p),
			Text:       text,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Source) matches(entry *gh.TreeEntry) bool {
	if entry.GetType() != "blob" {
		return false
	}
	p := entry.GetPath()
	if s.dir != "" && !strings.HasPrefix(p, s.dir+"/") {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return s.exts[strings.ToLower(path.Ext(p))]
}
