package generation

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"brandkit/internal/domain"
	"brandkit/internal/prediction"
)

type stubPredictor struct {
	uploadURL string
	submitErr error
	awaitErr  error
	result    domain.GenerationResult

	submitted []domain.GenerationRequest
	uploads   int
}

func (p *stubPredictor) UploadSource(ctx context.Context, img *domain.ImageUpload) (string, error) {
	p.uploads++
	return p.uploadURL, nil
}

func (p *stubPredictor) Submit(ctx context.Context, req domain.GenerationRequest) (*domain.SubmittedJob, error) {
	p.submitted = append(p.submitted, req)
	if p.submitErr != nil {
		return nil, p.submitErr
	}
	return domain.NewSubmittedJob("pred-1", time.Now(), req.Prompt(), "stability-ai/sdxl", req.SourceImageRef()), nil
}

func (p *stubPredictor) AwaitCompletion(ctx context.Context, job *domain.SubmittedJob, opts prediction.PollOptions) (domain.GenerationResult, error) {
	if p.awaitErr != nil {
		return nil, p.awaitErr
	}
	return p.result, nil
}

type memGenerations struct {
	mu    sync.Mutex
	items []domain.Generation
	err   error
	limit int
}

func (m *memGenerations) Create(ctx context.Context, gen *domain.Generation) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	gen.ID = fmt.Sprintf("gen-%d", len(m.items)+1)
	gen.CreatedAt = time.Date(2024, 1, 1, 0, 0, len(m.items), 0, time.UTC)
	m.items = append(m.items, *gen)
	return nil
}

func (m *memGenerations) GetByID(ctx context.Context, ownerID, id string) (*domain.Generation, error) {
	for _, g := range m.items {
		if g.ID == id && g.OwnerID == ownerID {
			cp := g
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memGenerations) ListRecent(ctx context.Context, ownerID string, limit int) ([]domain.Generation, error) {
	m.limit = limit
	var out []domain.Generation
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].OwnerID == ownerID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

type memNotifications struct {
	items []domain.Notification
}

func (m *memNotifications) Create(ctx context.Context, n *domain.Notification) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	n.ID = fmt.Sprintf("n-%d", len(m.items)+1)
	m.items = append(m.items, *n)
	return nil
}

func (m *memNotifications) List(ctx context.Context, ownerID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range m.items {
		if n.OwnerID == ownerID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memNotifications) MarkAllRead(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	for i := range m.items {
		if m.items[i].OwnerID == ownerID && !m.items[i].Read {
			m.items[i].Read = true
			n++
		}
	}
	return n, nil
}

type finishCall struct {
	status       domain.QueueStatus
	generationID string
	errMsg       string
}

type memJobs struct {
	enqueued  []domain.GenerationJob
	submitted string
	finished  []finishCall
}

func (m *memJobs) Enqueue(ctx context.Context, job *domain.GenerationJob) error {
	job.ID = "job-1"
	job.Status = domain.QueueStatusQueued
	m.enqueued = append(m.enqueued, *job)
	return nil
}

func (m *memJobs) Claim(ctx context.Context) (*domain.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

func (m *memJobs) GetByID(ctx context.Context, ownerID, id string) (*domain.GenerationJob, error) {
	for _, j := range m.enqueued {
		if j.ID == id && j.OwnerID == ownerID {
			cp := j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memJobs) MarkSubmitted(ctx context.Context, id, predictionID string) error {
	m.submitted = predictionID
	return nil
}

func (m *memJobs) Finish(ctx context.Context, id string, status domain.QueueStatus, generationID, errMsg string) error {
	m.finished = append(m.finished, finishCall{status, generationID, errMsg})
	return nil
}

func (m *memJobs) FailStale(ctx context.Context, olderThan time.Duration, errMsg string) (int64, error) {
	return 0, nil
}

type fixture struct {
	svc   *Service
	pred  *stubPredictor
	gens  *memGenerations
	notes *memNotifications
	jobs  *memJobs
}

func newFixture(t *testing.T, pred *stubPredictor) fixture {
	t.Helper()
	f := fixture{pred: pred, gens: &memGenerations{}, notes: &memNotifications{}, jobs: &memJobs{}}
	svc, err := NewService(Options{Predictor: pred, Generations: f.gens, Notifications: f.notes, Jobs: f.jobs})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	f.svc = svc
	return f
}

var alice = domain.Identity{UserID: "alice", Locale: "en"}

func twoImages() domain.GenerationResult {
	return domain.GenerationResult{
		{ID: "pred-1-0", ImageURL: "https://cdn/a.png", Prompt: "cat", ModelID: "stability-ai/sdxl"},
		{ID: "pred-1-1", ImageURL: "https://cdn/b.png", Prompt: "cat", ModelID: "stability-ai/sdxl"},
	}
}

func TestGeneratePersistsAndNotifies(t *testing.T) {
	f := newFixture(t, &stubPredictor{result: twoImages()})

	gen, err := f.svc.Generate(context.Background(), alice, domain.GenerationInput{Prompt: "cat", StyleTags: []string{"flat"}})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if gen.ID == "" || gen.PredictionID != "pred-1" || len(gen.Results) != 2 {
		t.Fatalf("unexpected generation: %+v", gen)
	}
	if len(gen.Styles) != 1 || gen.Styles[0] != "flat" {
		t.Fatalf("styles not stored: %v", gen.Styles)
	}
	if len(f.notes.items) != 1 {
		t.Fatalf("expected one notification, got %d", len(f.notes.items))
	}
	n := f.notes.items[0]
	if n.Kind != domain.NotificationSuccess || n.Message != "Successfully generated 2 images with AI" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestGenerateFailureNotifiesAndPersistsNothing(t *testing.T) {
	f := newFixture(t, &stubPredictor{awaitErr: &prediction.JobFailedError{JobID: "pred-1", Message: "NSFW content detected"}})

	_, err := f.svc.Generate(context.Background(), alice, domain.GenerationInput{Prompt: "cat"})
	var failed *prediction.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected JobFailedError, got %v", err)
	}
	if len(f.gens.items) != 0 {
		t.Fatalf("nothing should be persisted on failure")
	}
	if len(f.notes.items) != 1 || f.notes.items[0].Message != "AI generation failed: NSFW content detected" {
		t.Fatalf("unexpected notifications: %+v", f.notes.items)
	}
}

func TestGenerateLocalizesMessages(t *testing.T) {
	f := newFixture(t, &stubPredictor{awaitErr: &prediction.TimeoutError{JobID: "pred-1", Timeout: 5 * time.Second}})

	_, err := f.svc.Generate(context.Background(), domain.Identity{UserID: "budi", Locale: "id-ID"}, domain.GenerationInput{Prompt: "kucing"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := f.notes.items[0].Message; got != "Pembuatan gambar AI gagal: Waktu prediksi habis" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestGenerateValidationSkipsRemoteCall(t *testing.T) {
	pred := &stubPredictor{}
	f := newFixture(t, pred)

	_, err := f.svc.Generate(context.Background(), alice, domain.GenerationInput{Mode: "image-to-image", Prompt: "x"})
	if !errors.Is(err, domain.ErrSourceImageRequired) {
		t.Fatalf("expected ErrSourceImageRequired, got %v", err)
	}
	if len(pred.submitted) != 0 || len(f.notes.items) != 0 {
		t.Fatalf("validation failure must not submit or notify")
	}
}

func TestGenerateRequiresIdentity(t *testing.T) {
	f := newFixture(t, &stubPredictor{})
	if _, err := f.svc.Generate(context.Background(), domain.Identity{}, domain.GenerationInput{Prompt: "x"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGenerateNotifiesAfterCancellation(t *testing.T) {
	f := newFixture(t, &stubPredictor{awaitErr: context.Canceled})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Generate(ctx, alice, domain.GenerationInput{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.notes.items) != 1 || f.notes.items[0].Kind != domain.NotificationError {
		t.Fatalf("expected an error notification, got %+v", f.notes.items)
	}
}

func TestHistoryFlattensAndCaps(t *testing.T) {
	f := newFixture(t, &stubPredictor{result: twoImages()})
	for i := 0; i < 2; i++ {
		if _, err := f.svc.Generate(context.Background(), alice, domain.GenerationInput{Prompt: "cat"}); err != nil {
			t.Fatalf("Generate error: %v", err)
		}
	}

	items, err := f.svc.History(context.Background(), alice, 0)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if f.gens.limit != DefaultHistoryLimit {
		t.Fatalf("default limit = %d", f.gens.limit)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[0].GenerationID != "gen-2" || !items[0].CreatedAt.After(items[3].CreatedAt) {
		t.Fatalf("history not newest first: %+v", items)
	}

	if _, err := f.svc.History(context.Background(), alice, 500); err != nil {
		t.Fatalf("History error: %v", err)
	}
	if f.gens.limit != MaxHistoryLimit {
		t.Fatalf("limit should be capped, got %d", f.gens.limit)
	}
}

func TestEnqueueUploadsSourceImage(t *testing.T) {
	pred := &stubPredictor{uploadURL: "https://cdn/ai-inputs/x.png"}
	f := newFixture(t, pred)

	job, err := f.svc.Enqueue(context.Background(), domain.Identity{UserID: "alice", Locale: "id"}, domain.GenerationInput{
		Mode:        "image-to-image",
		Prompt:      "logo",
		SourceImage: &domain.ImageUpload{Name: "x.png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if pred.uploads != 1 {
		t.Fatalf("expected one upload, got %d", pred.uploads)
	}
	if job.Request.SourceImageRef != "https://cdn/ai-inputs/x.png" || job.Request.SourceImage != nil {
		t.Fatalf("unexpected stored request: %+v", job.Request)
	}
	if job.Locale != "id" {
		t.Fatalf("locale = %q", job.Locale)
	}
	if len(pred.submitted) != 0 {
		t.Fatalf("enqueue must not submit")
	}

	got, err := f.svc.Job(context.Background(), domain.Identity{UserID: "alice"}, job.ID)
	if err != nil || got.ID != job.ID {
		t.Fatalf("Job lookup failed: %v", err)
	}
	if _, err := f.svc.Job(context.Background(), domain.Identity{UserID: "mallory"}, job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other owners must not see the job, got %v", err)
	}
}

func TestRunJobSucceeded(t *testing.T) {
	f := newFixture(t, &stubPredictor{result: twoImages()})
	job := &domain.GenerationJob{ID: "job-1", OwnerID: "alice", Locale: "en", Request: domain.GenerationInput{Prompt: "cat"}}

	status, err := f.svc.RunJob(context.Background(), job)
	if err != nil {
		t.Fatalf("RunJob error: %v", err)
	}
	if status != domain.QueueStatusSucceeded {
		t.Fatalf("status = %q", status)
	}
	if f.jobs.submitted != "pred-1" {
		t.Fatalf("prediction id not recorded")
	}
	if len(f.jobs.finished) != 1 || f.jobs.finished[0].generationID != "gen-1" {
		t.Fatalf("unexpected finish calls: %+v", f.jobs.finished)
	}
}

func TestRunJobTimedOut(t *testing.T) {
	f := newFixture(t, &stubPredictor{awaitErr: &prediction.TimeoutError{JobID: "pred-1"}})
	job := &domain.GenerationJob{ID: "job-1", OwnerID: "alice", Request: domain.GenerationInput{Prompt: "cat"}}

	status, err := f.svc.RunJob(context.Background(), job)
	if err == nil {
		t.Fatal("expected error")
	}
	if status != domain.QueueStatusTimedOut || f.jobs.finished[0].status != domain.QueueStatusTimedOut {
		t.Fatalf("status = %q, finish = %+v", status, f.jobs.finished)
	}
	if f.jobs.finished[0].errMsg != "Prediction timed out" {
		t.Fatalf("errMsg = %q", f.jobs.finished[0].errMsg)
	}
}

func TestRunJobSubmissionRejected(t *testing.T) {
	f := newFixture(t, &stubPredictor{submitErr: &prediction.SubmissionError{StatusCode: 422}})
	job := &domain.GenerationJob{ID: "job-1", OwnerID: "alice", Request: domain.GenerationInput{Prompt: "cat"}}

	status, _ := f.svc.RunJob(context.Background(), job)
	if status != domain.QueueStatusFailed {
		t.Fatalf("status = %q", status)
	}
	if f.jobs.submitted != "" {
		t.Fatalf("no prediction id should be recorded")
	}
	if f.jobs.finished[0].errMsg != "API request failed with status 422" {
		t.Fatalf("errMsg = %q", f.jobs.finished[0].errMsg)
	}
}

func TestNotificationsAndMarkRead(t *testing.T) {
	f := newFixture(t, &stubPredictor{result: twoImages()})
	if _, err := f.svc.Generate(context.Background(), alice, domain.GenerationInput{Prompt: "cat"}); err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	unread, err := f.svc.Notifications(context.Background(), alice, true)
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected 1 unread, got %d (%v)", len(unread), err)
	}
	n, err := f.svc.MarkNotificationsRead(context.Background(), alice)
	if err != nil || n != 1 {
		t.Fatalf("MarkNotificationsRead = %d, %v", n, err)
	}
	unread, _ = f.svc.Notifications(context.Background(), alice, true)
	if len(unread) != 0 {
		t.Fatalf("expected no unread notifications")
	}
}

func TestWriteArchive(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.png") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	f := newFixture(t, &stubPredictor{})
	gen := &domain.Generation{
		ID:        "gen-1",
		CreatedAt: time.Now(),
		Results: domain.GenerationResult{
			{ID: "pred-1-0", ImageURL: srv.URL + "/a.png"},
			{ID: "pred-1-1", ImageURL: srv.URL + "/b.png"},
		},
	}

	var buf bytes.Buffer
	if err := f.svc.WriteArchive(context.Background(), gen, &buf); err != nil {
		t.Fatalf("WriteArchive error: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("invalid archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "pred-1-0.png" {
		t.Fatalf("unexpected entries: %v", zr.File)
	}

	gen.Results = append(gen.Results, domain.ResultImage{ID: "pred-1-2", ImageURL: srv.URL + "/missing.png"})
	if err := f.svc.WriteArchive(context.Background(), gen, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing image")
	}
}

func TestWriteArchiveRejectsOversizedImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 64))
	}))
	defer srv.Close()

	f := newFixture(t, &stubPredictor{})
	f.svc.maxDownload = 32
	gen := &domain.Generation{
		ID:      "gen-1",
		Results: domain.GenerationResult{{ID: "pred-1-0", ImageURL: srv.URL + "/big.png"}},
	}
	err := f.svc.WriteArchive(context.Background(), gen, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "exceeds 32 bytes") {
		t.Fatalf("expected size error, got %v", err)
	}

	f.svc.maxDownload = 64
	if err := f.svc.WriteArchive(context.Background(), gen, &bytes.Buffer{}); err != nil {
		t.Fatalf("image at the limit should be accepted: %v", err)
	}
}

func TestMatchLocale(t *testing.T) {
	cases := map[string]string{"": "en", "id": "id", "id-ID": "id", "en-GB": "en", "fr": "en", "garbage!!": "en"}
	for in, want := range cases {
		if got := MatchLocale(in).String(); got != want {
			t.Fatalf("MatchLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
