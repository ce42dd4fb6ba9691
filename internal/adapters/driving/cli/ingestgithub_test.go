package cli

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cvsearch/internal/core/domain"
)

func fakeGitHubServer(t *testing.T) *httptest.Server {
	t.Helper()
	blobs := map[string]string{
		"a": "# Alice\nalice@example.com\nGolang engineer, 8 years of experience",
		"b": "Bob\nJava developer",
	}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/cvs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"default_branch": "main", "html_url": "https://github.com/acme/cvs"})
	})
	mux.HandleFunc("GET /repos/acme/cvs/git/trees/main", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"tree": []map[string]any{
			{"path": "people/alice.md", "type": "blob", "sha": "a", "size": 60},
			{"path": "people/bob.txt", "type": "blob", "sha": "b", "size": 20},
			{"path": "notes.txt", "type": "blob", "sha": "b", "size": 20},
		}})
	})
	mux.HandleFunc("GET /repos/acme/cvs/git/blobs/{sha}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte(blobs[r.PathValue("sha")])),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestGitHubCmd_Flags(t *testing.T) {
	assert.Equal(t, "ingest-github [owner/repo]", ingestGitHubCmd.Use)
	for _, name := range []string{"ref", "path", "ext", "api-url"} {
		assert.NotNil(t, ingestGitHubCmd.Flags().Lookup(name), name)
	}
}

func TestIngestGitHubCmd(t *testing.T) {
	ts, cleanup := setupTestServices(t)
	defer cleanup()
	t.Setenv("GITHUB_TOKEN", "")
	githubRate = -1
	defer func() { githubRate = 0 }()

	srv := fakeGitHubServer(t)
	out, err := execute(t, "ingest-github", "acme/cvs", "--path", "people", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingesting 2 files from acme/cvs")
	assert.Contains(t, out, "created alice")
	assert.Contains(t, out, "created bob")

	doc, err := ts.app.Documents.Get(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/cvs/blob/main/people/alice.md", doc.Source)
	email, _ := doc.Fields.String(domain.FieldEmail)
	assert.Equal(t, "alice@example.com", email)
}

func TestIngestGitHubCmd_Errors(t *testing.T) {
	_, cleanup := setupTestServices(t)
	defer cleanup()
	githubRate = -1
	defer func() { githubRate = 0 }()

	_, err := execute(t, "ingest-github", "not-a-repo")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	srv := fakeGitHubServer(t)
	_, err = execute(t, "ingest-github", "acme/other", "--api-url", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read acme/other")

	out, err := execute(t, "ingest-github", "acme/cvs", "--path", "empty", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No résumé files found in acme/cvs")
}
