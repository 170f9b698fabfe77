package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/career-chat/internal/chat"
	"github.com/suPer8Hu/career-chat/internal/common"
	"github.com/suPer8Hu/career-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/career-chat/internal/upload"
	"github.com/suPer8Hu/career-chat/pkg/logger"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// Index starts the chat over: the cached file is dropped on every page load.
func (h *Handler) Index(c *gin.Context) {
	sid, ok := middleware.SessionIDFrom(c)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, 50001, "session missing")
		return
	}
	if err := h.ChatSvc.Reset(c.Request.Context(), sid); err != nil {
		logger.WithFields(map[string]any{
			"request_id": middleware.RequestIDFrom(c),
			"session_id": sid,
		}).Errorf("reset session: %v", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to reset session")
		return
	}
	c.HTML(http.StatusOK, "chat.html", nil)
}

func (h *Handler) Chat(c *gin.Context) {
	sid, ok := middleware.SessionIDFrom(c)
	if !ok {
		common.Fail(c, http.StatusInternalServerError, 50001, "session missing")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+formOverhead)
	if err := parseForm(c.Request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.Fail(c, http.StatusRequestEntityTooLarge, 41300, "upload too large")
			return
		}
		common.Fail(c, http.StatusBadRequest, 10001, "invalid form")
		return
	}

	message := c.Request.PostForm.Get("message")
	if strings.TrimSpace(message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message required")
		return
	}

	req := chat.TurnRequest{Message: message}
	if c.Request.MultipartForm != nil {
		if fh := firstFile(c.Request.MultipartForm, "file"); fh != nil {
			u, err := h.readUpload(fh)
			if err != nil {
				if errors.Is(err, upload.ErrTooLarge) {
					common.Fail(c, http.StatusRequestEntityTooLarge, 41300, "upload too large")
					return
				}
				common.Fail(c, http.StatusBadRequest, 10003, "unreadable file")
				return
			}
			req.Upload = u
		}
	}

	resp, err := h.ChatSvc.Turn(c.Request.Context(), sid, req)
	if err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			common.Fail(c, http.StatusRequestEntityTooLarge, 41300, "upload too large")
			return
		}
		logger.WithFields(map[string]any{
			"request_id": middleware.RequestIDFrom(c),
			"session_id": sid,
		}).Errorf("chat turn: %v", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to process upload")
		return
	}
	if resp.Error != "" {
		logger.WithFields(map[string]any{
			"request_id": middleware.RequestIDFrom(c),
			"session_id": sid,
		}).Warnf("completion error returned in-band")
	}

	// completion failures are reported in the body, never via the status
	c.JSON(http.StatusOK, resp)
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		// anything past 8 MiB spills to temp files
		return r.ParseMultipartForm(8 << 20)
	}
	return r.ParseForm()
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	files := form.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil
	}
	return files[0]
}

func (h *Handler) readUpload(fh *multipart.FileHeader) (*chat.Upload, error) {
	if fh.Size > h.MaxUploadBytes {
		return nil, upload.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.MaxUploadBytes {
		return nil, upload.ErrTooLarge
	}
	return &chat.Upload{Filename: fh.Filename, Data: data}, nil
}
