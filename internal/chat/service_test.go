package chat

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/career-chat/internal/ai"
	"github.com/suPer8Hu/career-chat/internal/session"
	"github.com/suPer8Hu/career-chat/internal/upload"
)

type recordingProvider struct {
	last   []ai.Message
	params ai.Params
	calls  int
	reply  string
	err    error
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message, params ai.Params) (string, error) {
	_ = ctx
	p.calls++
	// copy to avoid mutations
	p.last = append([]ai.Message(nil), messages...)
	p.params = params
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type testEnv struct {
	svc     *Service
	prov    *recordingProvider
	files   *session.FileCache
	uploads *upload.Store
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := upload.NewRepo(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	dir := t.TempDir()
	uploads := upload.NewStore(dir, repo, upload.NoopScheduler{}, time.Hour, 1<<20)
	files := session.NewFileCache(session.NewMemoryStore(), time.Hour)
	prov := &recordingProvider{reply: "  Here is my advice.  \n"}

	return &testEnv{
		svc:     NewService(files, uploads, upload.NewValidator(nil), prov, time.Second),
		prov:    prov,
		files:   files,
		uploads: uploads,
		dir:     dir,
	}
}

func userParts(t *testing.T, msgs []ai.Message) []ai.Part {
	t.Helper()
	if len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %d", len(msgs))
	}
	if msgs[0].Role != ai.RoleSystem || msgs[0].Content != SystemPrompt {
		t.Fatalf("unexpected system message %+v", msgs[0])
	}
	if msgs[1].Role != ai.RoleUser {
		t.Fatalf("unexpected user role %q", msgs[1].Role)
	}
	return msgs[1].Parts
}

func TestCompose(t *testing.T) {
	newFile := &session.CachedFile{Name: "new.pdf", DataURL: "data:application/pdf;base64,AA=="}
	cached := &session.CachedFile{Name: "old.txt", DataURL: "data:text/plain;base64,AA=="}

	cases := []struct {
		name      string
		newFile   *session.CachedFile
		cached    *session.CachedFile
		wantFile  string
		wantSaved bool
	}{
		{"text only", nil, nil, "", false},
		{"new file", newFile, nil, "new.pdf", false},
		{"new file wins over cached", newFile, cached, "new.pdf", false},
		{"cached file", nil, cached, "old.txt", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgs, saved := Compose("hi", tc.newFile, tc.cached)
			parts := userParts(t, msgs)
			if saved != tc.wantSaved {
				t.Fatalf("usingSavedFile=%v, want %v", saved, tc.wantSaved)
			}
			if parts[0].Type != ai.PartText || parts[0].Text != "hi" {
				t.Fatalf("first part must be the text, got %+v", parts[0])
			}
			if tc.wantFile == "" {
				if len(parts) != 1 {
					t.Fatalf("expected text only, got %d parts", len(parts))
				}
				return
			}
			if len(parts) != 2 || parts[1].File == nil || parts[1].File.Filename != tc.wantFile {
				t.Fatalf("expected file %q, got %+v", tc.wantFile, parts)
			}
		})
	}
}

func TestTurn_NewUploadIsAttachedAndCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.svc.Turn(ctx, "sid-1", TurnRequest{
		Message: "Review my CV",
		Upload:  &Upload{Filename: "../My CV.pdf", Data: []byte("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.AIReply != "Here is my advice." {
		t.Fatalf("reply should be trimmed, got %q", resp.AIReply)
	}
	if resp.UsingSavedFile || resp.UserMessage != "Review my CV" || resp.Error != "" || resp.Notice != "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	parts := userParts(t, env.prov.last)
	if len(parts) != 2 {
		t.Fatalf("expected text + file, got %d parts", len(parts))
	}
	want := upload.EncodeDataURL([]byte("%PDF-1.4"), "application/pdf")
	if parts[1].File.Filename != "My_CV.pdf" || parts[1].File.FileData != want {
		t.Fatalf("unexpected file part %+v", parts[1].File)
	}
	if env.prov.params.MaxTokens != MaxTokens || env.prov.params.Temperature != Temperature {
		t.Fatalf("unexpected params %+v", env.prov.params)
	}

	cached, ok, err := env.files.Fetch(ctx, "sid-1")
	if err != nil || !ok {
		t.Fatalf("expected cached file, ok=%v err=%v", ok, err)
	}
	if cached.Name != "My_CV.pdf" || cached.DataURL != want {
		t.Fatalf("unexpected cached file %+v", cached)
	}

	entries, err := os.ReadDir(env.dir)
	if err != nil || len(entries) != 1 || entries[0].Name() != "sid-1" {
		t.Fatalf("expected upload under the session dir, got %v err=%v", entries, err)
	}
}

func TestTurn_ReusesCachedFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Turn(ctx, "sid-1", TurnRequest{
		Message: "first",
		Upload:  &Upload{Filename: "notes.txt", Data: []byte("hello")},
	}); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	resp, err := env.svc.Turn(ctx, "sid-1", TurnRequest{Message: "second"})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !resp.UsingSavedFile {
		t.Fatalf("expected cached file to be reused")
	}
	parts := userParts(t, env.prov.last)
	if len(parts) != 2 || parts[1].File.Filename != "notes.txt" {
		t.Fatalf("expected cached notes.txt, got %+v", parts)
	}

	// other sessions never see it
	resp, err = env.svc.Turn(ctx, "sid-2", TurnRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("other session: %v", err)
	}
	if resp.UsingSavedFile || len(userParts(t, env.prov.last)) != 1 {
		t.Fatalf("cached file leaked across sessions")
	}
}

func TestTurn_ResetClearsCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Turn(ctx, "sid-1", TurnRequest{
		Message: "first",
		Upload:  &Upload{Filename: "photo.PNG", Data: []byte{0x89, 'P', 'N', 'G'}},
	}); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if err := env.svc.Reset(ctx, "sid-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	resp, err := env.svc.Turn(ctx, "sid-1", TurnRequest{Message: "again"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.UsingSavedFile || len(userParts(t, env.prov.last)) != 1 {
		t.Fatalf("expected text-only request after reset")
	}
}

func TestTurn_DisallowedUploadIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.files.Store(ctx, "sid-1", "cv.pdf", "data:application/pdf;base64,AA=="); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	resp, err := env.svc.Turn(ctx, "sid-1", TurnRequest{
		Message: "run this",
		Upload:  &Upload{Filename: "setup.exe", Data: []byte("MZ")},
	})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !resp.UsingSavedFile {
		t.Fatalf("cached file should still be reused")
	}
	if !strings.Contains(resp.Notice, "setup.exe") {
		t.Fatalf("expected notice naming the ignored file, got %q", resp.Notice)
	}
	parts := userParts(t, env.prov.last)
	if len(parts) != 2 || parts[1].File.Filename != "cv.pdf" {
		t.Fatalf("expected cached cv.pdf, got %+v", parts)
	}

	cached, _, _ := env.files.Fetch(ctx, "sid-1")
	if cached.Name != "cv.pdf" {
		t.Fatalf("disallowed upload must not touch the cache, got %+v", cached)
	}
	if entries, _ := os.ReadDir(env.dir); len(entries) != 0 {
		t.Fatalf("disallowed upload must not be stored, got %v", entries)
	}
}

func TestTurn_CompletionFailureIsInBand(t *testing.T) {
	env := newTestEnv(t)
	env.prov.err = errors.New("openai: rate limited")

	resp, err := env.svc.Turn(context.Background(), "sid-1", TurnRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("completion failures must not be returned as errors: %v", err)
	}
	if resp.AIReply != ErrorMarker+"openai: rate limited" {
		t.Fatalf("unexpected reply %q", resp.AIReply)
	}
	if resp.Error != "openai: rate limited" || resp.UserMessage != "hi" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTurn_OversizeUploadFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Turn(context.Background(), "sid-1", TurnRequest{
		Message: "big",
		Upload:  &Upload{Filename: "big.pdf", Data: make([]byte, 2<<20)},
	})
	if !errors.Is(err, upload.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if env.prov.calls != 0 {
		t.Fatalf("provider should not be called")
	}
}

func TestStoredName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"My CV.pdf", "My_CV.pdf"},
		{"履歴書.pdf", "upload.pdf"},
		{"résumé.DOCX", "resume.DOCX"},
	}
	for _, tc := range cases {
		if got := storedName(tc.in); got != tc.want {
			t.Fatalf("storedName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
