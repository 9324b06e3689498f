package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/models"
	"github.com/Ajay-css/chatify/pkg"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/pkg/ratelimit"
	"github.com/Ajay-css/chatify/services"
)

type MessageHandler struct {
	messageService services.MessageService
	uploadService  services.UploadService
	limiter        *ratelimit.MessageRateLimiter
	maxUploadSize  int64
}

func NewMessageHandler(
	messageService services.MessageService,
	uploadService services.UploadService,
	limiter *ratelimit.MessageRateLimiter,
	maxUploadSize int64,
) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		uploadService:  uploadService,
		limiter:        limiter,
		maxUploadSize:  maxUploadSize,
	}
}

// Users: GET /api/messages/users
func (h *MessageHandler) Users(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	users, err := h.messageService.ListUsers(r.Context(), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, users)
}

// Conversation: GET /api/messages/{userId}
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	messages, err := h.messageService.GetConversation(r.Context(), user.ID, r.PathValue("userId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, messages)
}

// Send: POST /api/messages/{userId}
//
// Accepts JSON {text, fileUrl, fileType} or multipart with a "text" field
// and an optional "file" part. An uploaded file overrides fileUrl/fileType.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	if h.limiter != nil && !h.limiter.Allow(user.ID) {
		retryAfter := h.limiter.CooldownSeconds(user.ID)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		pkg.Error(w, fmt.Errorf("%w: slow down, try again in %s", pkg.ErrRateLimited, ratelimit.FormatRetryMessage(retryAfter)))
		return
	}

	var req models.CreateMessageRequest
	var uploaded string // saved by this request

	if isMultipart(r.Header.Get("Content-Type")) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		req.Text = r.FormValue("text")

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			url, kind, err := h.uploadService.Save(file, header)
			if err != nil {
				pkg.Error(w, err)
				return
			}
			req.FileURL = url
			req.FileType = string(kind)
			uploaded = url
		case err != http.ErrMissingFile:
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid file part")
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	msg, _, err := h.messageService.Send(r.Context(), user.ID, r.PathValue("userId"), &req)
	if err != nil {
		if uploaded != "" {
			if rmErr := h.uploadService.Remove(uploaded); rmErr != nil {
				logger.Warn("[message] orphaned upload not removed", zap.String("url", uploaded), zap.Error(rmErr))
			}
		}
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, msg)
}

func isMultipart(contentType string) bool {
	return strings.HasPrefix(contentType, "multipart/form-data")
}
