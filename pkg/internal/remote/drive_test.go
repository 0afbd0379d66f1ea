package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/yeisme/arca/pkg/configs"
	"github.com/yeisme/arca/pkg/internal/remote"
)

// TestDriveAPIKey 测试只配置 API key 时请求携带 key 参数.
func TestDriveAPIKey(t *testing.T) {
	t.Setenv(remote.CredentialsEnv, "")

	var gotKey, gotQuery string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotQuery = r.URL.Query().Get("q")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"id":"1","name":"himnario.pdf","mimeType":"application/pdf","size":"42","md5Checksum":"abc"},
			{"id":"2","name":"sermones","mimeType":"application/vnd.google-apps.folder"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	cfg := configs.DriveConfig{
		CredentialsFile: filepath.Join(t.TempDir(), "credentials.json"),
		APIKey:          "clave-publica",
	}

	d, err := remote.NewDrive(context.Background(), cfg, 10, option.WithEndpoint(srv.URL+"/drive/v3/"))
	require.NoError(t, err)

	page, err := d.ListPage(context.Background(), "carpeta", "")
	require.NoError(t, err)

	assert.Equal(t, "clave-publica", gotKey)
	assert.Contains(t, gotQuery, "'carpeta' in parents")
	require.Len(t, page.Items, 1)
	assert.Equal(t, "himnario.pdf", page.Items[0].Name)
	assert.Equal(t, "abc", page.Items[0].Digest)
}

// TestDriveCredentialsErrors 测试凭据内容非法时创建失败.
func TestDriveCredentialsErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "credentials.json")

	t.Run("json is not a service account", func(t *testing.T) {
		t.Setenv(remote.CredentialsEnv, "")

		cfg := configs.DriveConfig{CredentialsJSON: `{"type":"authorized_user"}`, CredentialsFile: missing}

		_, err := remote.NewDrive(context.Background(), cfg, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse drive credentials")
	})

	t.Run("env json", func(t *testing.T) {
		t.Setenv(remote.CredentialsEnv, "{no es json")

		cfg := configs.DriveConfig{CredentialsFile: missing, APIKey: "clave"}

		_, err := remote.NewDrive(context.Background(), cfg, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse drive credentials")
	})

	t.Run("no credentials", func(t *testing.T) {
		t.Setenv(remote.CredentialsEnv, "")

		_, err := remote.NewDrive(context.Background(), configs.DriveConfig{CredentialsFile: missing}, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read drive credentials")
	})

	t.Run("oauth client without token", func(t *testing.T) {
		t.Setenv(remote.CredentialsEnv, "")

		dir := t.TempDir()
		file := filepath.Join(dir, "credentials.json")
		client := `{"installed":{"client_id":"id","client_secret":"s","auth_uri":"https://accounts.google.com/o/oauth2/auth",` +
			`"token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
		require.NoError(t, os.WriteFile(file, []byte(client), 0o600))

		cfg := configs.DriveConfig{CredentialsFile: file, TokenFile: filepath.Join(dir, "token.json")}

		_, err := remote.NewDrive(context.Background(), cfg, 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read drive token")
	})
}
