package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
)

const defaultRequestTimeout = 15 * time.Second

// Account is what signup and login return.
type Account struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// APIError is a non-success envelope. It unwraps to the matching pkg
// sentinel so callers can errors.Is(err, pkg.ErrUnauthorized).
type APIError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return pkg.ErrNotFound
	case http.StatusUnauthorized:
		return pkg.ErrUnauthorized
	case http.StatusForbidden:
		return pkg.ErrForbidden
	case http.StatusConflict:
		return pkg.ErrAlreadyExists
	case http.StatusBadRequest:
		return pkg.ErrBadRequest
	case http.StatusTooManyRequests:
		return pkg.ErrRateLimited
	default:
		return pkg.ErrInternal
	}
}

// API calls the REST endpoints with a bearer token. It implements Fetcher.
type API struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewAPI returns a client for the server at baseURL ("http://host:port").
// A nil httpClient gets a default with a request timeout.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (a *API) BaseURL() string       { return a.baseURL }
func (a *API) Token() string         { return a.token }
func (a *API) SetToken(token string) { a.token = token }

func (a *API) Signup(ctx context.Context, req models.SignupRequest) (*Account, error) {
	var acc Account
	if err := a.doJSON(ctx, http.MethodPost, "/api/auth/signup", req, &acc); err != nil {
		return nil, err
	}
	a.token = acc.Token
	return &acc, nil
}

func (a *API) Login(ctx context.Context, req models.LoginRequest) (*Account, error) {
	var acc Account
	if err := a.doJSON(ctx, http.MethodPost, "/api/auth/login", req, &acc); err != nil {
		return nil, err
	}
	a.token = acc.Token
	return &acc, nil
}

// Check returns the user the current token belongs to.
func (a *API) Check(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := a.doJSON(ctx, http.MethodGet, "/api/auth/check", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (a *API) Users(ctx context.Context) ([]models.UserWithPresence, error) {
	var users []models.UserWithPresence
	if err := a.doJSON(ctx, http.MethodGet, "/api/messages/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (a *API) Conversation(ctx context.Context, partnerID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := a.doJSON(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(partnerID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (a *API) Send(ctx context.Context, partnerID string, req models.CreateMessageRequest) (*models.Message, error) {
	var msg models.Message
	if err := a.doJSON(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(partnerID), req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendFile uploads file as a multipart message with optional text.
func (a *API) SendFile(ctx context.Context, partnerID, text, filename string, file io.Reader) (*models.Message, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if text != "" {
		if err := mw.WriteField("text", text); err != nil {
			return nil, errors.Wrap(err, "write text field")
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "create file part")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Wrap(err, "copy file")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	httpReq, err := a.newRequest(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(partnerID), &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var msg models.Message
	if err := a.do(httpReq, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := a.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.do(req, out)
}

func (a *API) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return req, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (a *API) do(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode}
		}
		return errors.Wrapf(err, "decode %s %s", req.Method, req.URL.Path)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Error}
		if secs := resp.Header.Get("Retry-After"); secs != "" {
			if d, err := time.ParseDuration(secs + "s"); err == nil {
				apiErr.RetryAfter = d
			}
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s data", req.Method, req.URL.Path)
	}
	return nil
}
