package livedoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const defaultHttpTimeout = 90 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

const accessTokenHeader = "X-Access-Token"

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type FetchErrorKind int

const (
	// no access token configured. Fetch is skipped and reported once, not
	// retried faster than the normal interval.
	KindCredentialMissing FetchErrorKind = iota
	KindNotFound
	KindAccessDenied
	KindRateLimited
	KindRemoteInternalError
	KindTransportError
	KindDecodeError
)

func (self FetchErrorKind) String() string {
	switch self {
	case KindCredentialMissing:
		return "credential missing"
	case KindNotFound:
		return "not found"
	case KindAccessDenied:
		return "access denied"
	case KindRateLimited:
		return "rate limited"
	case KindRemoteInternalError:
		return "remote internal error"
	case KindTransportError:
		return "transport error"
	case KindDecodeError:
		return "decode error"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind       FetchErrorKind
	DocumentId DocumentId
	Message    string
	Cause      error
}

func (self *FetchError) Error() string {
	if self.Message != "" {
		return fmt.Sprintf("%s (%s): %s", self.Kind, self.DocumentId, self.Message)
	}
	return fmt.Sprintf("%s (%s)", self.Kind, self.DocumentId)
}

func (self *FetchError) Unwrap() error {
	return self.Cause
}

func newFetchError(kind FetchErrorKind, documentId DocumentId, message string, cause error) *FetchError {
	return &FetchError{
		Kind:       kind,
		DocumentId: documentId,
		Message:    message,
		Cause:      cause,
	}
}

// the access credential for the remote source. Either a raw token or a jwt;
// a jwt is parsed unverified so that expiry can be surfaced in error reports.
type Credential struct {
	Token string
}

func (self *Credential) IsMissing() bool {
	return self == nil || self.Token == ""
}

// ExpiresAt returns the expiry claim when the token is a parseable jwt.
func (self *Credential) ExpiresAt() (time.Time, bool) {
	if self.IsMissing() {
		return time.Time{}, false
	}
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(self.Token, gojwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	expirationTime, err := token.Claims.GetExpirationTime()
	if err != nil || expirationTime == nil {
		return time.Time{}, false
	}
	return expirationTime.Time, true
}

// differential fetch parameters. The previous document's header fields let
// the remote source reply "unchanged" instead of resending content, and the
// session token tells it which image bytes the client already holds.
type FetchRequest struct {
	DocumentId    DocumentId          `json:"document_id"`
	Queries       []NodeQuery         `json:"queries"`
	IgnoredImages map[string][]string `json:"ignored_images,omitempty"`
	LastModified  string              `json:"last_modified,omitempty"`
	Version       string              `json:"version,omitempty"`
	SessionToken  string              `json:"session_token,omitempty"`
}

type FetchResponse struct {
	Unmodified bool             `json:"unmodified,omitempty"`
	Document   *DocumentPayload `json:"document,omitempty"`
}

// the raw decoded payload of an updated document. Image entries may be
// zero-length placeholders for keys named by the request's session token;
// the caller carries those over from its previous document.
type DocumentPayload struct {
	Header       DocumentHeader    `json:"header"`
	Views        []*QueryView      `json:"views"`
	Branches     []DocInfo         `json:"branches,omitempty"`
	Images       map[string][]byte `json:"images,omitempty"`
	SessionToken string            `json:"session_token,omitempty"`
}

// DocumentFetcher is the remote fetch transport contract. The default
// implementation is Api; tests supply fakes.
type DocumentFetcher interface {
	Fetch(ctx context.Context, request *FetchRequest) (*FetchResponse, *FetchError)
}

type Api struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl     string
	credential *Credential
}

func NewApi(apiUrl string, credential *Credential) *Api {
	return NewApiWithContext(context.Background(), apiUrl, credential)
}

func NewApiWithContext(ctx context.Context, apiUrl string, credential *Credential) *Api {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Api{
		ctx:        cancelCtx,
		cancel:     cancel,
		apiUrl:     apiUrl,
		credential: credential,
	}
}

func (self *Api) SetCredential(credential *Credential) {
	self.credential = credential
}

func (self *Api) Close() {
	self.cancel()
}

// DocumentFetcher
func (self *Api) Fetch(ctx context.Context, request *FetchRequest) (*FetchResponse, *FetchError) {
	documentId := request.DocumentId
	if self.credential.IsMissing() {
		return nil, newFetchError(KindCredentialMissing, documentId, "no access token configured", nil)
	}

	requestBodyBytes, err := json.Marshal(request)
	if err != nil {
		return nil, newFetchError(KindDecodeError, documentId, "encode request", err)
	}

	url := fmt.Sprintf("%s/documents/%s", self.apiUrl, documentId.Id)
	if documentId.VersionId != "" {
		url = fmt.Sprintf("%s?version=%s", url, documentId.VersionId)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(requestBodyBytes))
	if err != nil {
		return nil, newFetchError(KindTransportError, documentId, "create request", err)
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add(accessTokenHeader, self.credential.Token)

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		return nil, newFetchError(KindTransportError, documentId, "connect", err)
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, newFetchError(KindTransportError, documentId, "read response", err)
	}

	if fetchErr := classifyStatus(r.StatusCode, documentId, responseBodyBytes, self.credential); fetchErr != nil {
		return nil, fetchErr
	}

	response := &FetchResponse{}
	if err := json.Unmarshal(responseBodyBytes, response); err != nil {
		return nil, newFetchError(KindDecodeError, documentId, "decode response", err)
	}
	return response, nil
}

func classifyStatus(statusCode int, documentId DocumentId, responseBodyBytes []byte, credential *Credential) *FetchError {
	if statusCode == http.StatusOK {
		return nil
	}

	// the response body is the error message
	message := strings.TrimSpace(string(responseBodyBytes))
	cause := errors.New(message)

	switch statusCode {
	case http.StatusNotFound:
		return newFetchError(KindNotFound, documentId, message, cause)
	case http.StatusForbidden, http.StatusUnauthorized:
		if expirationTime, ok := credential.ExpiresAt(); ok && expirationTime.Before(time.Now()) {
			message = fmt.Sprintf("access token expired %s", expirationTime.Format(time.RFC3339))
		}
		return newFetchError(KindAccessDenied, documentId, message, cause)
	case http.StatusTooManyRequests:
		return newFetchError(KindRateLimited, documentId, message, cause)
	default:
		if 500 <= statusCode {
			return newFetchError(KindRemoteInternalError, documentId, message, cause)
		}
		return newFetchError(KindTransportError, documentId, fmt.Sprintf("unhandled status %d: %s", statusCode, message), cause)
	}
}
