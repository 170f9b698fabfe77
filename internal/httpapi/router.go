package httpapi

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/career-chat/internal/chat"
	"github.com/suPer8Hu/career-chat/internal/common"
	"github.com/suPer8Hu/career-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/career-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/career-chat/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Deps struct {
	ChatSvc        *chat.Service
	Cookies        *session.Cookies
	MaxUploadBytes int64
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	// r.Use(gin.Recovery())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	h := handlers.NewHandler(deps.ChatSvc, deps.MaxUploadBytes)

	r.GET("/ping", h.Ping)

	// browser session (signed cookie)
	web := r.Group("/")
	web.Use(middleware.Session(deps.Cookies))
	web.GET("/", h.Index)
	web.POST("/chat", h.Chat)
	return r
}
