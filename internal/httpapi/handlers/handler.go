package handlers

import (
	"github.com/suPer8Hu/career-chat/internal/chat"
)

// formOverhead is the room left for the message field and multipart framing
// on top of the upload limit.
const formOverhead = 1 << 20

type Handler struct {
	ChatSvc        *chat.Service
	MaxUploadBytes int64
}

func NewHandler(chatSvc *chat.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{ChatSvc: chatSvc, MaxUploadBytes: maxUploadBytes}
}
