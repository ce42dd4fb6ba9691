// Package drive reads résumés from a Google Drive folder.
//
// Regular files are downloaded and converted with the normalisers
// registry. Google Docs are exported as plain text. Subfolders are read
// recursively and their names become part of the document ID.
package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/cvsearch/internal/connectors/google"
	"github.com/custodia-labs/cvsearch/internal/core/domain"
	"github.com/custodia-labs/cvsearch/internal/logger"
	"github.com/custodia-labs/cvsearch/internal/normalisers"
)

// MIME types with special handling.
const (
	MimeTypeFolder    = "application/vnd.google-apps.folder"
	MimeTypeGoogleDoc = "application/vnd.google-apps.document"
	ExportMimeText    = "text/plain"
)

// MaxFileSize is the largest file downloaded or exported.
const MaxFileSize = 5 << 20

const (
	pageSize   = 100
	listFields = "nextPageToken, files(id, name, mimeType, size, webViewLink)"
)

// Options configures access to the Drive API. Without AccessToken,
// CredentialsFile or HTTPClient, application default credentials are
// used.
type Options struct {
	// AccessToken is an OAuth access token with drive.readonly scope.
	AccessToken string

	// CredentialsFile is a service account or authorised user JSON file.
	CredentialsFile string

	// Endpoint overrides the API base URL.
	Endpoint string

	// HTTPClient is used as is, bypassing authentication.
	HTTPClient *http.Client

	// RequestsPerSecond throttles requests. Zero means google.DriveRate and
	// a negative value disables throttling.
	RequestsPerSecond float64
}

// File is one résumé read from the folder.
type File struct {
	Path       string
	DocumentID string
	URL        string
	Text       string
}

// Source is a Drive folder of résumés.
type Source struct {
	svc      *drive.Service
	folderID string
	exts     map[string]bool
	registry *normalisers.Registry
	limiter  *google.RateLimiter
}

// NewSource creates a source reading the folder folderID. With no
// extensions every format the registry converts is read. Google Docs are
// always read.
func NewSource(ctx context.Context, folderID string, opts Options, exts ...string) (*Source, error) {
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, fmt.Errorf("%w: folder id is required", domain.ErrInvalidInput)
	}

	var clientOpts []option.ClientOption
	switch {
	case opts.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	case opts.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts,
			option.WithCredentialsFile(opts.CredentialsFile),
			option.WithScopes(drive.DriveReadonlyScope))
	default:
		clientOpts = append(clientOpts, option.WithScopes(drive.DriveReadonlyScope))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: google drive: %w", domain.ErrConfiguration, err)
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

	perSecond := opts.RequestsPerSecond
	if perSecond == 0 {
		perSecond = google.DriveRate
	}
	return &Source{
		svc:      svc,
		folderID: folderID,
		exts:     set,
		registry: registry,
		limiter:  google.NewRateLimiter(perSecond),
	}, nil
}

// WithRegistry replaces the normalisers used to convert files to text.
func (s *Source) WithRegistry(r *normalisers.Registry) *Source {
	s.registry = r
	return s
}

// FolderID returns the root folder being read.
func (s *Source) FolderID() string {
	return s.folderID
}

type folder struct {
	id     string
	prefix string
}

// Fetch reads every matching file in the folder tree, ordered by path.
// Files that cannot be downloaded or converted are logged and skipped.
func (s *Source) Fetch(ctx context.Context) ([]File, error) {
	var files []File
	seen := make(map[string]bool)

	queue := []folder{{id: s.folderID}}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := s.list(ctx, dir.id)
		if err != nil {
			return nil, err
		}
		for _, f := range entries {
			p := path.Join(dir.prefix, f.Name)
			if f.MimeType == MimeTypeFolder {
				queue = append(queue, folder{id: f.Id, prefix: p})
				continue
			}
			if !s.matches(f) {
				continue
			}
			if f.Size > MaxFileSize {
				logger.Warn("skipping %s: %d bytes", p, f.Size)
				continue
			}

			text, err := s.read(ctx, f)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("skipping %s: %v", p, err)
				continue
			}

			id := documentID(p, f.MimeType)
			if seen[id] {
				logger.Warn("%s: duplicate name, using file id", p)
				id = id + "-" + f.Id
			}
			seen[id] = true

			link := f.WebViewLink
			if link == "" {
				link = "https://drive.google.com/file/d/" + f.Id + "/view"
			}
			files = append(files, File{Path: p, DocumentID: id, URL: link, Text: text})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// list returns the non-trashed children of a folder.
func (s *Source) list(ctx context.Context, folderID string) ([]*drive.File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false", strings.ReplaceAll(folderID, "'", `\'`))
	call := s.svc.Files.List().Q(q).Fields(listFields).PageSize(pageSize)

	var out []*drive.File
	err := call.Pages(ctx, func(page *drive.FileList) error {
		out = append(out, page.Files...)
		return s.limiter.Wait(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.limiter.Observe(err)
		return nil, google.WrapError(err, "list folder "+folderID)
	}
	return out, nil
}

// read downloads or exports a file and converts it to text.
func (s *Source) read(ctx context.Context, f *drive.File) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var (
		resp *http.Response
		err  error
		name = f.Name
	)
	if f.MimeType == MimeTypeGoogleDoc {
		resp, err = s.svc.Files.Export(f.Id, ExportMimeText).Context(ctx).Download()
		name += ".txt"
	} else {
		resp, err = s.svc.Files.Get(f.Id).Context(ctx).Download()
	}
	if err != nil {
		s.limiter.Observe(err)
		return "", google.WrapError(err, "download "+f.Id)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	return s.registry.Text(ctx, name, data)
}

func (s *Source) matches(f *drive.File) bool {
	if strings.HasPrefix(f.Name, ".") {
		return false
	}
	if f.MimeType == MimeTypeGoogleDoc {
		return true
	}
	return s.exts[strings.ToLower(path.Ext(f.Name))]
}

// documentID is the path without extension. Google Docs have none.
func documentID(p, mimeType string) string {
	if mimeType == MimeTypeGoogleDoc {
		return p
	}
	return strings.TrimSuffix(p, path.Ext(p))
}
