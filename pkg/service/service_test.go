package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openidx/authcore/pkg/cache"
	"github.com/openidx/authcore/pkg/claims"
	"github.com/openidx/authcore/pkg/directory"
	"github.com/openidx/authcore/pkg/keys"
	"github.com/openidx/authcore/pkg/resolver"
	storagememory "github.com/openidx/authcore/pkg/storage/memory"
	"github.com/openidx/authcore/pkg/token"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mem := directory.NewMemory()
	hash, err := directory.HashSecret("hunter2")
	require.NoError(t, err)

	mem.AddTenant(directory.Tenant{ID: "tenant-1", Name: "Acme"})
	mem.AddUser(directory.User{
		ID:           "user-1",
		TenantID:     "tenant-1",
		Email:        "jordan@acme.test",
		Status:       directory.StatusActive,
		PasswordHash: hash,
	})
	mem.GrantRole("user-1",
		directory.Role{ID: "role-admin", Name: "ADMIN"},
		directory.Permission{ID: "p-read", Resource: "user", Action: "read"},
	)
	mem.AddEndpoint(directory.PermissionEndpoint{
		ID: "ep-1", PermissionID: "p-read",
		URLPattern: "/api/users/{userId}", Method: "GET",
	})

	km := keys.NewManager()
	require.NoError(t, km.GenerateKeyPair(2048))

	cacheClient, err := cache.New(cache.Config{Driver: "memory", Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheClient.Close() })

	composer := claims.NewComposer(mem, mem, mem, mem, mem)
	signer := token.NewSigner(km, "https://authcore.test")
	store := token.NewStore(storagememory.New(), cacheClient)
	manager := token.NewManager(composer, signer, store, mem, directory.BcryptVerifier{}, token.ManagerConfig{
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})

	res, err := resolver.New(mem, mem)
	require.NoError(t, err)

	config := DefaultFileConfig()
	svc := New(manager, signer, res, NewMetrics(), config)

	server := httptest.NewServer(svc.Router())
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestLoginEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("valid credentials return a pair", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/auth/login", map[string]string{
			"identifier": "jordan@acme.test",
			"secret":     "hunter2",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			SubjectID             string `json:"subject_id"`
			AccessToken           string `json:"access_token"`
			RefreshToken          string `json:"refresh_token"`
			ExpiresIn             int64  `json:"expires_in"`
			RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
			TokenType             string `json:"token_type"`
		}
		decodeJSON(t, resp, &body)
		assert.Equal(t, "user-1", body.SubjectID)
		assert.NotEmpty(t, body.AccessToken)
		assert.NotEmpty(t, body.RefreshToken)
		assert.Equal(t, int64(60), body.ExpiresIn)
		assert.Equal(t, int64(3600), body.RefreshTokenExpiresIn)
		assert.Equal(t, "Bearer", body.TokenType)
	})

	t.Run("bad credentials are 401 with the taxonomy code", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/auth/login", map[string]string{
			"identifier": "jordan@acme.test",
			"secret":     "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body map[string]string
		decodeJSON(t, resp, &body)
		assert.Equal(t, "INVALID_CREDENTIALS", body["error"])
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/auth/login", map[string]string{})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	server := newTestServer(t)

	login := postJSON(t, server.URL+"/auth/login", map[string]string{
		"identifier": "jordan@acme.test",
		"secret":     "hunter2",
	})
	require.Equal(t, http.StatusOK, login.StatusCode)
	var pair struct {
		RefreshToken string `json:"refresh_token"`
	}
	decodeJSON(t, login, &pair)

	t.Run("refresh rotates the pair", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var rotated struct {
			RefreshToken string `json:"refresh_token"`
		}
		decodeJSON(t, resp, &rotated)
		assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

		// the old refresh token is now rejected
		resp = postJSON(t, server.URL+"/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		pair.RefreshToken = rotated.RefreshToken
	})

	t.Run("logout is 204 and repeatable", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/auth/logout", map[string]string{"subject_id": "user-1"})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = postJSON(t, server.URL+"/auth/logout", map[string]string{"subject_id": "user-1"})
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		// refresh after logout fails
		resp = postJSON(t, server.URL+"/auth/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestMeEndpoint(t *testing.T) {
	server := newTestServer(t)

	t.Run("identity projection from the gateway header", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set(HeaderUserID, "user-1")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			SubjectID   string   `json:"subject_id"`
			TenantName  string   `json:"tenant_name"`
			Roles       []string `json:"roles"`
			Permissions []string `json:"permissions"`
		}
		decodeJSON(t, resp, &body)
		assert.Equal(t, "user-1", body.SubjectID)
		assert.Equal(t, "Acme", body.TenantName)
		assert.Equal(t, []string{"ADMIN"}, body.Roles)
		assert.Equal(t, []string{"user:read"}, body.Permissions)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/auth/me")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestJWKSEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	decodeJSON(t, resp, &doc)
	require.NotEmpty(t, doc.Keys)
	for _, k := range doc.Keys {
		assert.Equal(t, "RSA", k["kty"])
		assert.NotEmpty(t, k["kid"])
		assert.NotEmpty(t, k["n"])
		assert.NotEmpty(t, k["e"])
		assert.NotContains(t, k, "d")
	}
}

func TestPermissionSpecEndpoints(t *testing.T) {
	server := newTestServer(t)

	t.Run("bulk export", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/permission-spec")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var export struct {
			Mappings []struct {
				URLPattern    string `json:"url_pattern"`
				HTTPMethod    string `json:"http_method"`
				PermissionKey string `json:"permission_key"`
			} `json:"mappings"`
			LastUpdatedAt time.Time `json:"last_updated_at"`
		}
		decodeJSON(t, resp, &export)
		require.Len(t, export.Mappings, 1)
		assert.Equal(t, "/api/users/{userId}", export.Mappings[0].URLPattern)
		assert.Equal(t, "GET", export.Mappings[0].HTTPMethod)
		assert.Equal(t, "user:read", export.Mappings[0].PermissionKey)
		assert.False(t, export.LastUpdatedAt.IsZero())
	})

	t.Run("single resolution", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/permission-spec/resolve?method=GET&path=/api/users/42")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		decodeJSON(t, resp, &body)
		assert.Equal(t, "user:read", body["permission_key"])
	})

	t.Run("unmapped endpoint is 404", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/permission-spec/resolve?method=GET&path=/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t)

	// generate one counted outcome first
	resp := postJSON(t, server.URL+"/auth/login", map[string]string{
		"identifier": "jordan@acme.test",
		"secret":     "hunter2",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.json"

	config := DefaultFileConfig()
	config.ListenAddr = ":9999"
	require.NoError(t, SaveFileConfig(config, path))

	loaded, err := LoadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.ListenAddr)
	assert.Equal(t, config.AccessTokenTTLSeconds, loaded.AccessTokenTTLSeconds)
	assert.Equal(t, 30*time.Minute, loaded.AccessTokenTTL())

	t.Run("empty path returns defaults", func(t *testing.T) {
		def, err := LoadFileConfig("")
		require.NoError(t, err)
		assert.Equal(t, ":8080", def.ListenAddr)
		assert.Equal(t, "memory", def.Storage.Driver)
	})
}
