package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/async"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/department"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/repository"
)

type recordingQueue struct {
	jobs []async.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func newTestService(t *testing.T) (*Service, *recordingQueue, *repository.DB) {
	t.Helper()
	logger := slog.Default()
	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "svc.db"), logger)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close(nil) })

	q := &recordingQueue{}
	svc := NewService(
		repository.NewUserRepository(db, logger),
		repository.NewJobRepository(db, logger),
		repository.NewUploadRepository(db, logger),
		repository.NewSummarizedContentRepository(db, logger),
		department.Defaults(),
		q,
		logger,
	)
	return svc, q, db
}

func seedUser(t *testing.T, svc *Service) uuid.UUID {
	t.Helper()
	u, err := svc.UpsertUser(context.Background(), "clerk@metro.example", "Records Clerk")
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	return u.ID
}

func TestAcceptDocumentEnqueuesPendingJob(t *testing.T) {
	svc, q, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, svc)

	pdf := filepath.Join(t.TempDir(), "minutes.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}

	jobID, uploadID, err := svc.AcceptDocument(ctx, pdf, userID)
	if err != nil {
		t.Fatalf("AcceptDocument: %v", err)
	}

	st, err := svc.JobStatus(ctx, jobID)
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if st.State != constants.JobStatePending {
		t.Errorf("new job state = %s, want PENDING", st.State)
	}

	if len(q.jobs) != 1 || q.jobs[0].JobID != jobID || q.jobs[0].UploadID != uploadID {
		t.Errorf("queue contents = %+v", q.jobs)
	}
	if q.jobs[0].TraceID == "" {
		t.Error("enqueued job missing trace id")
	}
}

func TestAcceptDocumentRejectsNonPDF(t *testing.T) {
	svc, q, _ := newTestService(t)
	userID := seedUser(t, svc)

	_, _, err := svc.AcceptDocument(context.Background(), "/tmp/notes.docx", userID)
	if !common.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if len(q.jobs) != 0 {
		t.Error("rejected file must not be enqueued")
	}
}

func TestAcceptDocumentUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.AcceptDocument(context.Background(), "/tmp/a.pdf", uuid.New())
	if !common.IsNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestJobStatusUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.JobStatus(context.Background(), uuid.New())
	if !common.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestFileByUpload(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, svc)

	pdf := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, uploadID, err := svc.AcceptDocument(ctx, pdf, userID)
	if err != nil {
		t.Fatalf("AcceptDocument: %v", err)
	}

	path, mediaType, err := svc.FileByUpload(ctx, uploadID)
	if err != nil {
		t.Fatalf("FileByUpload: %v", err)
	}
	if path != pdf || mediaType != "application/pdf" {
		t.Errorf("got %q %q", path, mediaType)
	}

	// A file removed from disk surfaces as not-found, not a broken stream.
	if err := os.Remove(pdf); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.FileByUpload(ctx, uploadID); !common.IsNotFound(err) {
		t.Errorf("expected not-found for missing file, got %v", err)
	}
}

func TestSummariesByDepartmentResolvesFirst(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.SummariesByDepartment(ctx, "department of mysteries")
	if !common.IsValidation(err) {
		t.Fatalf("unknown department must fail loudly, got %v", err)
	}

	sums := repository.NewSummarizedContentRepository(db, slog.Default())
	if _, err := sums.Insert(ctx, &entity.SummarizedContent{
		Title:       "Bogie order",
		Description: "order spare bogies",
		Department:  "procurement",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Title form resolves to the same department as the canonical name.
	got, err := svc.SummariesByDepartment(ctx, "Procurement")
	if err != nil || len(got) != 1 {
		t.Errorf("summaries = %v (%v)", got, err)
	}
}

func TestUpsertUserValidatesEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.UpsertUser(context.Background(), "not-an-email", ""); !common.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	u1, err := svc.UpsertUser(context.Background(), "Clerk@Metro.example", "A")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	u2, err := svc.UpsertUser(context.Background(), "clerk@metro.example", "B")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u1.ID != u2.ID {
		t.Error("email must be case-insensitive for identity")
	}
}
