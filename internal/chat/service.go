package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/career-chat/internal/ai"
	"github.com/suPer8Hu/career-chat/internal/session"
	"github.com/suPer8Hu/career-chat/internal/upload"
	"github.com/suPer8Hu/career-chat/pkg/logger"
)

// ErrorMarker prefixes the reply when the completion call fails.
const ErrorMarker = "⚠️ Completion API Error: "

type Upload struct {
	Filename string
	Data     []byte
}

type TurnRequest struct {
	Message string
	Upload  *Upload
}

type TurnResponse struct {
	UserMessage    string `json:"user_message"`
	AIReply        string `json:"ai_reply"`
	UsingSavedFile bool   `json:"using_saved_file"`
	Notice         string `json:"notice,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Service struct {
	files     *session.FileCache
	uploads   *upload.Store
	validator *upload.Validator
	provider  ai.Provider
	params    ai.Params
	timeout   time.Duration
}

func NewService(files *session.FileCache, uploads *upload.Store, validator *upload.Validator, provider ai.Provider, timeout time.Duration) *Service {
	if validator == nil {
		validator = upload.NewValidator(nil)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{
		files:     files,
		uploads:   uploads,
		validator: validator,
		provider:  provider,
		params:    DefaultParams(),
		timeout:   timeout,
	}
}

// Reset forgets the cached file of a session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	return s.files.Reset(ctx, sessionID)
}

// Turn handles one chat message. Errors are returned only for local
// failures (storage, session cache); completion failures are reported
// in-band through AIReply and Error.
func (s *Service) Turn(ctx context.Context, sessionID string, req TurnRequest) (*TurnResponse, error) {
	resp := &TurnResponse{UserMessage: req.Message}

	var newFile *session.CachedFile
	if req.Upload != nil && req.Upload.Filename != "" {
		if s.validator.IsAllowed(req.Upload.Filename) {
			f, err := s.accept(ctx, sessionID, req.Upload)
			if err != nil {
				return nil, err
			}
			newFile = f
		} else {
			resp.Notice = fmt.Sprintf("%s was ignored: unsupported file type", upload.SanitizeFilename(req.Upload.Filename))
		}
	}

	var cached *session.CachedFile
	if newFile == nil {
		f, ok, err := s.files.Fetch(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("fetch cached file: %w", err)
		}
		if ok {
			cached = &f
		}
	}

	messages, usingSaved := Compose(req.Message, newFile, cached)
	resp.UsingSavedFile = usingSaved

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.provider.Chat(cctx, messages, s.params)
	if err != nil {
		logger.WithFields(map[string]any{
			"session_id": sessionID,
			"cost":       time.Since(start).String(),
		}).Errorf("completion failed: %v", err)
		resp.AIReply = ErrorMarker + err.Error()
		resp.Error = err.Error()
		return resp, nil
	}

	resp.AIReply = strings.TrimSpace(reply)
	return resp, nil
}

// accept stores an allowed upload and makes it the session's cached file.
func (s *Service) accept(ctx context.Context, sessionID string, u *Upload) (*session.CachedFile, error) {
	rec, err := s.uploads.Save(ctx, sessionID, storedName(u.Filename), u.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	dataURL := upload.EncodeDataURL(u.Data, rec.MimeType)
	if err := s.files.Store(ctx, sessionID, rec.FileName, dataURL); err != nil {
		return nil, fmt.Errorf("cache upload: %w", err)
	}
	return &session.CachedFile{Name: rec.FileName, DataURL: dataURL}, nil
}

// storedName sanitizes filename and keeps its extension even when
// sanitizing strips every other character (e.g. a fully non-ASCII name).
func storedName(filename string) string {
	name := upload.SanitizeFilename(filename)
	ext, ok := upload.Extension(filename)
	if ok && !strings.HasSuffix(strings.ToLower(name), "."+ext) {
		return "upload." + ext
	}
	return name
}
