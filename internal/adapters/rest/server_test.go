package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ewilliams-labs/soundsorter/internal/adapters/sqlite"
	"github.com/ewilliams-labs/soundsorter/internal/adapters/tagstub"
	"github.com/ewilliams-labs/soundsorter/internal/core/domain"
	"github.com/ewilliams-labs/soundsorter/internal/core/services/progress"
	"github.com/ewilliams-labs/soundsorter/internal/filemover"
	"github.com/ewilliams-labs/soundsorter/internal/worker"
)

func newTestServerWithPool(t *testing.T) (*Server, *sqlite.Adapter, string) {
	t.Helper()
	store, err := sqlite.NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	source := t.TempDir()
	target := t.TempDir()
	p := worker.New(worker.Config{
		Store:     store,
		TagReader: tagstub.New(),
		Mover:     filemover.New(target, nil),
		Tracker:   progress.New(),
		SourceDir: source,
	})
	s := NewServer(Config{
		Store:     store,
		TagReader: tagstub.New(),
		Tracker:   progress.New(),
		Pool:      p,
		Mover:     filemover.New(target, nil),
		SourceDir: source,
	})
	return s, store, source
}

func newTestServer(t *testing.T) (*Server, *sqlite.Adapter, string) {
	t.Helper()
	store, err := sqlite.NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	source := t.TempDir()
	target := t.TempDir()
	s := NewServer(Config{
		Store:     store,
		TagReader: tagstub.New(),
		Tracker:   progress.New(),
		Mover:     filemover.New(target, nil),
		SourceDir: source,
	})
	return s, store, source
}

func doRequest(s *Server, method, target string, body any) *httptest.ResponseRecorder {
	var r *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		r = httptest.NewRequest(method, target, bytes.NewReader(b))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

func TestHandleStatus(t *testing.T) {
	s, _, source := newTestServer(t)
	os.WriteFile(filepath.Join(source, "album"), []byte("x"), 0o644)

	w := doRequest(s, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SourceDir != source {
		t.Fatalf("expected source dir %q, got %q", source, resp.SourceDir)
	}
	if resp.Total != 1 {
		t.Fatalf("expected total 1, got %d", resp.Total)
	}
}

func TestHandlePaths_StageConfirmCancel(t *testing.T) {
	s, _, source := newTestServer(t)
	newSource := t.TempDir()

	w := doRequest(s, http.MethodPost, "/api/paths", postPathsRequest{SourceDir: newSource, Action: "stage"})
	if w.Code != http.StatusOK {
		t.Fatalf("stage: expected 200, got %d", w.Code)
	}

	w = doRequest(s, http.MethodGet, "/api/paths", nil)
	var got pathsResponse
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Staged.SourceDir != newSource {
		t.Fatalf("expected staged source %q, got %q", newSource, got.Staged.SourceDir)
	}
	if got.Current.SourceDir != source {
		t.Fatalf("expected current source unchanged at %q, got %q", source, got.Current.SourceDir)
	}

	w = doRequest(s, http.MethodPost, "/api/paths", postPathsRequest{Action: "confirm"})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", w.Code)
	}
	if s.SourceDir() != newSource {
		t.Fatalf("expected source dir applied to %q, got %q", newSource, s.SourceDir())
	}

	w = doRequest(s, http.MethodPost, "/api/paths", postPathsRequest{SourceDir: "/tmp/elsewhere", Action: "stage"})
	if w.Code != http.StatusOK {
		t.Fatalf("restage: expected 200, got %d", w.Code)
	}
	w = doRequest(s, http.MethodPost, "/api/paths", postPathsRequest{Action: "cancel"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", w.Code)
	}
	w = doRequest(s, http.MethodGet, "/api/paths", nil)
	json.Unmarshal(w.Body.Bytes(), &got)
	if got.Staged.SourceDir != "" {
		t.Fatalf("expected staged source cleared, got %q", got.Staged.SourceDir)
	}
}

func TestHandlePaths_ConfirmEnqueuesScanJobAndRepointsPool(t *testing.T) {
	s, store, _ := newTestServerWithPool(t)
	newSource := t.TempDir()

	doRequest(s, http.MethodPost, "/api/paths", postPathsRequest{SourceDir: newSource, Action: "stage"})
	w := doRequest(s, http.MethodPost, "/api/paths", postPathsRequest{Action: "confirm"})
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", w.Code)
	}

	if s.pool.SourceDir() != newSource {
		t.Fatalf("expected pool source dir repointed to %q, got %q", newSource, s.pool.SourceDir())
	}

	job, err := store.FindLatestByFolder(context.Background(), newSource, []domain.Status{domain.StatusQueued})
	if err != nil {
		t.Fatalf("find latest by folder: %v", err)
	}
	if job == nil {
		t.Fatalf("expected a queued scan job for %q after confirm", newSource)
	}
	if job.JobType != domain.JobTypeScan {
		t.Fatalf("expected job_type scan, got %s", job.JobType)
	}
}

func TestHandleList(t *testing.T) {
	s, _, _ := newTestServer(t)
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "Weezer"), 0o755)
	os.MkdirAll(filepath.Join(root, "Beck"), 0o755)
	os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644)

	w := doRequest(s, http.MethodGet, "/api/list?path="+root, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp listResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 directory entries, got %d", len(resp.Entries))
	}
}

func TestHandleList_MissingPath(t *testing.T) {
	s, _, _ := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/api/list?path=/does/not/exist", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleReadyAndFolderAndDecision(t *testing.T) {
	s, store, _ := newTestServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	folder := t.TempDir()
	os.WriteFile(filepath.Join(folder, "01 - Weezer - Buddy Holly.mp3"), []byte("x"), 0o644)

	id, err := store.Enqueue(ctx, domain.Job{FolderPath: folder, JobType: domain.JobTypeAnalyze})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	proposal := domain.Proposal{Artist: "Weezer", Album: "Blue Album", Year: "1994", ReleaseType: domain.ReleaseAlbum}
	resultJSON, _ := json.Marshal(proposal)
	if _, err := store.ClaimQueuedForAnalysis(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.CompleteAnalysis(ctx, id, string(resultJSON), ""); err != nil {
		t.Fatalf("complete analysis: %v", err)
	}

	w := doRequest(s, http.MethodGet, "/api/ready", nil)
	var ready []readyEntry
	json.Unmarshal(w.Body.Bytes(), &ready)
	if len(ready) != 1 || ready[0].Path != folder {
		t.Fatalf("expected one ready entry for %q, got %+v", folder, ready)
	}

	w = doRequest(s, http.MethodGet, "/api/folder?path="+folder, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("folder: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var fr folderResponse
	json.Unmarshal(w.Body.Bytes(), &fr)
	if fr.Proposal.Artist != "Weezer" {
		t.Fatalf("expected proposal artist Weezer, got %q", fr.Proposal.Artist)
	}

	raw, _ := json.Marshal(proposal)
	w = doRequest(s, http.MethodPost, "/api/decision", map[string]any{
		"path": folder, "action": "accept", "proposal": json.RawMessage(raw),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	job, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if job.Status != domain.StatusAccepted {
		t.Fatalf("expected status accepted, got %s", job.Status)
	}
}

func TestHandleDecision_SkipAndReconsider(t *testing.T) {
	s, store, _ := newTestServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	folder := t.TempDir()
	id, _ := store.Enqueue(ctx, domain.Job{FolderPath: folder, JobType: domain.JobTypeAnalyze})
	store.ClaimQueuedForAnalysis(ctx)
	store.CompleteAnalysis(ctx, id, `{"artist":"Beck","album":"Odelay","release_type":"Album"}`, "")

	w := doRequest(s, http.MethodPost, "/api/decision", map[string]any{"path": folder, "action": "skip"})
	if w.Code != http.StatusOK {
		t.Fatalf("skip: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	job, _ := store.GetByID(ctx, id)
	if job.Status != domain.StatusSkipped {
		t.Fatalf("expected skipped, got %s", job.Status)
	}

	other := t.TempDir()
	id2, _ := store.Enqueue(ctx, domain.Job{FolderPath: other, JobType: domain.JobTypeAnalyze})
	store.ClaimQueuedForAnalysis(ctx)
	store.CompleteAnalysis(ctx, id2, `{"artist":"Beck","album":"Mutations","release_type":"Album"}`, "")

	w = doRequest(s, http.MethodPost, "/api/decision", map[string]any{
		"path": other, "action": "reconsider", "feedback": "wrong artist",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reconsider: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	job2, _ := store.GetByID(ctx, id2)
	if job2.Status != domain.StatusQueued {
		t.Fatalf("expected requeued to queued, got %s", job2.Status)
	}
	if job2.UserFeedback != "wrong artist" {
		t.Fatalf("expected feedback carried over, got %q", job2.UserFeedback)
	}
}

func TestHandleDebugJobs(t *testing.T) {
	s, store, _ := newTestServer(t)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	store.Enqueue(ctx, domain.Job{FolderPath: t.TempDir(), JobType: domain.JobTypeAnalyze})

	w := doRequest(s, http.MethodGet, "/api/debug/jobs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp debugResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Recent) != 1 {
		t.Fatalf("expected 1 recent job, got %d", len(resp.Recent))
	}

	w = doRequest(s, http.MethodGet, "/api/debug/jobs?statuses=completed", nil)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Recent) != 0 {
		t.Fatalf("expected 0 jobs filtered to completed, got %d", len(resp.Recent))
	}
}
