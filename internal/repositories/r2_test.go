package repositories_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohits-web03/chainforge/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactKey(t *testing.T) {
	assert.Equal(t, "artifacts/"+alice+"/12.json", repositories.ArtifactKey(alice, 12))
}

func TestR2Endpoint(t *testing.T) {
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", repositories.R2Endpoint("acct"))
}

func TestArtifactStore_PresignGet(t *testing.T) {
	store := repositories.NewArtifactStore("ak", "sk", "https://storage.example", "bucket", "auto")

	raw, err := store.PresignGet(context.Background(), "artifacts/x/1.json", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "storage.example", u.Host)
	assert.Equal(t, "/bucket/artifacts/x/1.json", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestArtifactStore_PutAndExists(t *testing.T) {
	var (
		mu     sync.Mutex
		stored = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			stored[r.URL.Path] = string(body)
			w.WriteHeader(http.StatusOK)
		case http.MethodHead:
			if _, ok := stored[r.URL.Path]; ok {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	store := repositories.NewArtifactStore("ak", "sk", srv.URL, "bucket", "auto")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "artifacts/a/1.json", []byte(`{"abi":[]}`)))
	mu.Lock()
	assert.True(t, strings.Contains(stored["/bucket/artifacts/a/1.json"], `{"abi":[]}`))
	mu.Unlock()

	ok, err := store.Exists(ctx, "artifacts/a/1.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "artifacts/a/2.json")
	require.NoError(t, err)
	assert.False(t, ok)
}
