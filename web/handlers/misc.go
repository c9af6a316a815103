package handlers

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/housinglord/housing-lord/mailer"
	"github.com/housinglord/housing-lord/models"
)

const sendTimeout = 10 * time.Second

func (h *MiscHandlers) Health(w http.ResponseWriter, _ *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotifyOwner handles POST /api/notify-owner. The email is sent before the
// response is written.
func (h *MiscHandlers) NotifyOwner(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Mailer == nil {
		renderError(w, http.StatusServiceUnavailable, "Email is not configured")
		return
	}

	var req models.NotifyOwnerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.TrimSpace(req.Email)

	if err := h.Deps.Validate.Struct(req); err != nil {
		renderError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()

	id, err := h.Deps.Mailer.Send(ctx, mailer.Message{
		From:    h.Deps.MailFrom,
		To:      []string{req.Email},
		Subject: req.Subject,
		Text:    req.Message,
		HTML:    "<p>" + strings.ReplaceAll(html.EscapeString(req.Message), "\n", "<br>") + "</p>",
	})
	if err != nil {
		h.Deps.Logger.Error("failed to send owner notification", zap.String("to", req.Email), zap.Error(err))

		msg := "Failed to send email"
		if errors.Is(err, mailer.ErrNoRecipients) {
			msg = "No valid recipient"
		}

		renderError(w, http.StatusInternalServerError, msg)

		return
	}

	renderJSON(w, http.StatusOK, models.NotifyOwnerResponse{Success: true, MessageID: id})
}

// UploadImage handles POST /api/upload-image with a multipart "file" field.
func (h *MiscHandlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.Deps.Images == nil {
		renderError(w, http.StatusServiceUnavailable, "Image storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Deps.MaxUploadSize)

	if err := r.ParseMultipartForm(h.Deps.MaxUploadSize); err != nil {
		renderError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		renderError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, _ := file.Read(sniff)

	contentType := http.DetectContentType(sniff[:n])
	if !strings.HasPrefix(contentType, "image/") {
		renderError(w, http.StatusBadRequest, "File must be an image")
		return
	}

	if _, err := file.Seek(0, 0); err != nil {
		renderError(w, http.StatusBadRequest, "invalid file")
		return
	}

	ref, err := h.Deps.Images.UploadImage(r.Context(), header.Filename, contentType, file)
	if err != nil {
		h.Deps.Logger.Error("failed to upload image", zap.String("filename", header.Filename), zap.Error(err))
		renderError(w, http.StatusInternalServerError, "Failed to upload image")

		return
	}

	renderJSON(w, http.StatusOK, ref)
}
