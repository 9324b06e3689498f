package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
)

func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(pkg.APIResponse{Success: errMsg == "", Data: data, Error: errMsg})
}

func TestAPILoginStoresTokenAndSendsBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a@example.com", req.Email)
		writeEnvelope(w, http.StatusOK, Account{Token: "tok", User: models.User{ID: "alice"}}, "")
	})
	mux.HandleFunc("GET /api/messages/{userId}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeEnvelope(w, http.StatusUnauthorized, nil, "missing token")
			return
		}
		writeEnvelope(w, http.StatusOK, []models.Message{{ID: "m1", SenderID: r.PathValue("userId"), CreatedAt: time.Now()}}, "")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := NewAPI(srv.URL+"/", nil)
	_, err := api.Conversation(context.Background(), "bob")
	require.ErrorIs(t, err, pkg.ErrUnauthorized)

	acc, err := api.Login(context.Background(), models.LoginRequest{Email: "a@example.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.User.ID)
	assert.Equal(t, "tok", api.Token())

	msgs, err := api.Conversation(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].SenderID)
}

func TestAPIErrorCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		writeEnvelope(w, http.StatusTooManyRequests, nil, "slow down")
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, nil)
	api.SetToken("tok")
	_, err := api.Send(context.Background(), "bob", models.CreateMessageRequest{Text: "hi"})
	require.ErrorIs(t, err, pkg.ErrRateLimited)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.Equal(t, "slow down", apiErr.Error())
}

func TestAPISendFileIsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "caption", r.FormValue("text"))

		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "notes.txt", header.Filename)
		assert.Equal(t, "hello", string(body))

		writeEnvelope(w, http.StatusCreated, models.Message{ID: "m1", Kind: models.KindDocument, FileURL: "/api/uploads/x.txt"}, "")
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, nil)
	msg, err := api.SendFile(context.Background(), "bob", "caption", "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, models.KindDocument, msg.Kind)
}

func TestAPINonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPI(srv.URL, nil).Users(context.Background())
	require.ErrorIs(t, err, pkg.ErrInternal)
}
