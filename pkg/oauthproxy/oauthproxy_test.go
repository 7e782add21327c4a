package oauthproxy_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	core "github.com/MCPJam/inspector-sub007"
	oauthproxy "github.com/MCPJam/inspector-sub007/pkg/oauthproxy"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchMetadata_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"https://example.com"}`))
	}))
	defer srv.Close()

	p := oauthproxy.New(core.Config{})
	out, err := p.FetchMetadata(context.Background(), srv.URL)
	require.NoError(t, err)

	doc, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", doc["issuer"])
}

func TestFetchMetadata_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := oauthproxy.New(core.Config{})
	_, err := p.FetchMetadata(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrServerUnreachable)
}

func TestForward_ForwardsMethodHeadersAndJSONBody(t *testing.T) {
	var gotMethod, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"access_token":"xyz"}`))
	}))
	defer srv.Close()

	p := oauthproxy.New(core.Config{})
	resp, err := p.Forward(context.Background(), schema.OAuthProxyRequest{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"Authorization": "Bearer token"},
		Body:    json.RawMessage(`{"grant_type":"authorization_code"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, "authorization_code", gotBody["grant_type"])

	assert.Equal(t, http.StatusCreated, resp.Status)
	body, ok := resp.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "xyz", body["access_token"])
}

func TestForward_FormURLEncodedBody(t *testing.T) {
	var gotContentType, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := oauthproxy.New(core.Config{})
	_, err := p.Forward(context.Background(), schema.OAuthProxyRequest{
		URL:     srv.URL,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    json.RawMessage(`{"client_id":"abc"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "client_id=abc", gotBody)
}

func TestForward_DefaultsToPOSTWhenMethodEmpty(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := oauthproxy.New(core.Config{})
	_, err := p.Forward(context.Background(), schema.OAuthProxyRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestForward_RejectsHTTPInWebMode(t *testing.T) {
	p := oauthproxy.New(core.Config{WebMode: true})
	_, err := p.Forward(context.Background(), schema.OAuthProxyRequest{URL: "http://example.com/token"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestForward_RejectsUnsupportedScheme(t *testing.T) {
	p := oauthproxy.New(core.Config{})
	_, err := p.Forward(context.Background(), schema.OAuthProxyRequest{URL: "ftp://example.com/token"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBadParameter)
}

func TestForward_RejectsMalformedURL(t *testing.T) {
	p := oauthproxy.New(core.Config{})
	_, err := p.Forward(context.Background(), schema.OAuthProxyRequest{URL: "not-a-url"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBadParameter)
}
