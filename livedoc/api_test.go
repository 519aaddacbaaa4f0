package livedoc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func statusServer(statusCode int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		w.Write([]byte(body))
	}))
}

func TestApiStatusClassification(t *testing.T) {
	cases := []struct {
		statusCode int
		kind       FetchErrorKind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusForbidden, KindAccessDenied},
		{http.StatusUnauthorized, KindAccessDenied},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusInternalServerError, KindRemoteInternalError},
		{http.StatusBadGateway, KindRemoteInternalError},
		{http.StatusBadRequest, KindTransportError},
	}

	for _, c := range cases {
		server := statusServer(c.statusCode, "nope")
		api := NewApi(server.URL, &Credential{Token: "token"})

		_, fetchErr := api.Fetch(context.Background(), &FetchRequest{
			DocumentId: NewDocumentId("doc1"),
		})
		assert.NotEqual(t, nil, fetchErr)
		assert.Equal(t, c.kind, fetchErr.Kind)

		api.Close()
		server.Close()
	}
}

func TestApiCredentialMissing(t *testing.T) {
	api := NewApi("http://localhost:1", nil)
	defer api.Close()

	_, fetchErr := api.Fetch(context.Background(), &FetchRequest{
		DocumentId: NewDocumentId("doc1"),
	})
	assert.NotEqual(t, nil, fetchErr)
	assert.Equal(t, KindCredentialMissing, fetchErr.Kind)
}

func TestApiTransportError(t *testing.T) {
	// nothing listens here
	api := NewApi("http://127.0.0.1:1", &Credential{Token: "token"})
	defer api.Close()

	_, fetchErr := api.Fetch(context.Background(), &FetchRequest{
		DocumentId: NewDocumentId("doc1"),
	})
	assert.NotEqual(t, nil, fetchErr)
	assert.Equal(t, KindTransportError, fetchErr.Kind)
}

func TestApiExpiredTokenMessage(t *testing.T) {
	server := statusServer(http.StatusUnauthorized, "denied")
	defer server.Close()

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString([]byte("test key"))
	assert.Equal(t, nil, err)

	api := NewApi(server.URL, &Credential{Token: tokenStr})
	defer api.Close()

	_, fetchErr := api.Fetch(context.Background(), &FetchRequest{
		DocumentId: NewDocumentId("doc1"),
	})
	assert.NotEqual(t, nil, fetchErr)
	assert.Equal(t, KindAccessDenied, fetchErr.Kind)
	assert.Equal(t, true, strings.Contains(fetchErr.Message, "expired"))
}

func TestApiFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/documents/doc1", r.URL.Path)
		assert.Equal(t, "token", r.Header.Get(accessTokenHeader))

		request := &FetchRequest{}
		assert.Equal(t, nil, json.NewDecoder(r.Body).Decode(request))
		assert.Equal(t, "lm-v1", request.LastModified)

		json.NewEncoder(w).Encode(&FetchResponse{
			Document: &DocumentPayload{
				Header: DocumentHeader{
					Name:    "Test Doc",
					Version: "v2",
				},
			},
		})
	}))
	defer server.Close()

	api := NewApi(server.URL, &Credential{Token: "token"})
	defer api.Close()

	response, fetchErr := api.Fetch(context.Background(), &FetchRequest{
		DocumentId:   NewDocumentId("doc1"),
		Queries:      []NodeQuery{QueryName("Main")},
		LastModified: "lm-v1",
	})
	assert.Equal(t, nil, fetchErr)
	assert.Equal(t, false, response.Unmodified)
	assert.Equal(t, "v2", response.Document.Header.Version)
}

func TestCredentialExpiresAt(t *testing.T) {
	credential := &Credential{Token: "not a jwt"}
	_, ok := credential.ExpiresAt()
	assert.Equal(t, false, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"exp": exp.Unix(),
	})
	tokenStr, err := token.SignedString([]byte("test key"))
	assert.Equal(t, nil, err)

	credential = &Credential{Token: tokenStr}
	expiresAt, ok := credential.ExpiresAt()
	assert.Equal(t, true, ok)
	assert.Equal(t, true, expiresAt.Equal(exp))
}
