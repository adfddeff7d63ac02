//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"photo-enhance-pipeline/internal/domain"
	"photo-enhance-pipeline/internal/domain/model"
	"photo-enhance-pipeline/internal/domain/ports/adapter"
	"photo-enhance-pipeline/internal/domain/ports/repository"
	"photo-enhance-pipeline/internal/resilience"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repository
// =============================

// StatusCall captures one UpdateJobStatus invocation for assertions.
type StatusCall struct {
	ID       string
	Expected model.JobStatus
	Next     model.JobStatus
	Fields   repository.StatusUpdate
}

// MockJobRepo is an in-memory JobRepository with the same conditional-write
// semantics as the real stores. Every method can be overridden per test.
type MockJobRepo struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	batches map[string]*model.BatchJob

	StatusCalls []StatusCall

	CreateJobFunc           func(ctx context.Context, job *model.Job) error
	FindJobFunc             func(ctx context.Context, id string) (*model.Job, error)
	UpdateJobStatusFunc     func(ctx context.Context, id string, expected, next model.JobStatus, fields repository.StatusUpdate) (*model.Job, error)
	FindJobsByBatchFunc     func(ctx context.Context, batchID string) ([]*model.Job, error)
	CreateBatchFunc         func(ctx context.Context, batch *model.BatchJob, children []*model.Job) error
	FindBatchFunc           func(ctx context.Context, id string) (*model.BatchJob, error)
	UpdateBatchProgressFunc func(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[string]*model.Job{}, batches: map[string]*model.BatchJob{}}
}

func (r *MockJobRepo) CreateJob(ctx context.Context, job *model.Job) error {
	if r.CreateJobFunc != nil {
		return r.CreateJobFunc(ctx, job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MockJobRepo) FindJob(ctx context.Context, id string) (*model.Job, error) {
	if r.FindJobFunc != nil {
		return r.FindJobFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MockJobRepo) UpdateJobStatus(ctx context.Context, id string, expected, next model.JobStatus, fields repository.StatusUpdate) (*model.Job, error) {
	r.mu.Lock()
	r.StatusCalls = append(r.StatusCalls, StatusCall{ID: id, Expected: expected, Next: next, Fields: fields})
	r.mu.Unlock()
	if r.UpdateJobStatusFunc != nil {
		return r.UpdateJobStatusFunc(ctx, id, expected, next, fields)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != expected {
		return nil, domain.ErrConflict
	}
	j.Status = next
	if fields.TempKey != "" {
		j.TempKey = fields.TempKey
	}
	if fields.FinalKey != "" {
		j.FinalKey = fields.FinalKey
	}
	if fields.Error != "" {
		j.Error = fields.Error
	}
	j.UpdatedAt = time.Now()
	cp := *j
	return &cp, nil
}

func (r *MockJobRepo) FindJobsByBatch(ctx context.Context, batchID string) ([]*model.Job, error) {
	if r.FindJobsByBatchFunc != nil {
		return r.FindJobsByBatchFunc(ctx, batchID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.jobs {
		if j.BatchID == batchID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (r *MockJobRepo) CreateBatch(ctx context.Context, batch *model.BatchJob, children []*model.Job) error {
	if r.CreateBatchFunc != nil {
		return r.CreateBatchFunc(ctx, batch, children)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batches[batch.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *batch
	r.batches[batch.ID] = &cp
	for _, child := range children {
		jc := *child
		r.jobs[child.ID] = &jc
	}
	return nil
}

func (r *MockJobRepo) FindBatch(ctx context.Context, id string) (*model.BatchJob, error) {
	if r.FindBatchFunc != nil {
		return r.FindBatchFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MockJobRepo) UpdateBatchProgress(ctx context.Context, id string, expectedCount, newCount int, status model.JobStatus) (*model.BatchJob, error) {
	if r.UpdateBatchProgressFunc != nil {
		return r.UpdateBatchProgressFunc(ctx, id, expectedCount, newCount, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if b.CompletedCount != expectedCount {
		return nil, domain.ErrConflict
	}
	b.CompletedCount = newCount
	b.Status = status
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

// seedJob stores a job as-is, bypassing lifecycle rules.
func (r *MockJobRepo) seedJob(j *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
}

// seedBatch stores a batch as-is.
func (r *MockJobRepo) seedBatch(b *model.BatchJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.batches[b.ID] = &cp
}

// =============================
// Providers
// =============================

func okAnalysis(desc string) resilience.Outcome[adapter.AnalysisResult] {
	return resilience.Outcome[adapter.AnalysisResult]{
		Success:    true,
		Payload:    adapter.AnalysisResult{Description: desc, Model: "mock-vision"},
		Provider:   "mock-analysis",
		Resilience: resilience.Info{CircuitBreakerState: resilience.BreakerClosed},
	}
}

func failedAnalysis(msg string) resilience.Outcome[adapter.AnalysisResult] {
	return resilience.Outcome[adapter.AnalysisResult]{
		Success:      false,
		ErrorMessage: msg,
		Provider:     "mock-analysis",
		Resilience:   resilience.Info{CircuitBreakerState: resilience.BreakerOpen},
	}
}

func okEdit(outputURL string) resilience.Outcome[adapter.EditResult] {
	return resilience.Outcome[adapter.EditResult]{
		Success:    true,
		Payload:    adapter.EditResult{OutputURL: outputURL, Model: "mock-paint"},
		Provider:   "mock-editor",
		Resilience: resilience.Info{CircuitBreakerState: resilience.BreakerClosed},
	}
}

func failedEdit(msg string) resilience.Outcome[adapter.EditResult] {
	return resilience.Outcome[adapter.EditResult]{
		Success:      false,
		ErrorMessage: msg,
		Provider:     "mock-editor",
		Resilience:   resilience.Info{CircuitBreakerState: resilience.BreakerOpen},
	}
}

type MockAnalysis struct {
	mu    sync.Mutex
	Calls []adapter.AnalysisRequest

	AnalyzeFunc func(ctx context.Context, req adapter.AnalysisRequest) resilience.Outcome[adapter.AnalysisResult]
}

var _ adapter.AnalysisProvider = (*MockAnalysis)(nil)

func (m *MockAnalysis) Name() string                     { return "mock-analysis" }
func (m *MockAnalysis) Healthy(ctx context.Context) bool { return true }

func (m *MockAnalysis) Analyze(ctx context.Context, req adapter.AnalysisRequest) resilience.Outcome[adapter.AnalysisResult] {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return okAnalysis("a tabby cat on a sunny windowsill")
}

type MockEditor struct {
	mu    sync.Mutex
	Calls []adapter.EditRequest

	EditFunc func(ctx context.Context, req adapter.EditRequest) resilience.Outcome[adapter.EditResult]
}

var _ adapter.EditingProvider = (*MockEditor)(nil)

func (m *MockEditor) Name() string                     { return "mock-editor" }
func (m *MockEditor) Healthy(ctx context.Context) bool { return true }

func (m *MockEditor) Edit(ctx context.Context, req adapter.EditRequest) resilience.Outcome[adapter.EditResult] {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()
	if m.EditFunc != nil {
		return m.EditFunc(ctx, req)
	}
	return okEdit("https://cdn.example/edited.png")
}

// =============================
// Blob storage
// =============================

// BlobOp records one call against the mock store.
type BlobOp struct {
	Op        string // optimize | copy | put | delete | presign
	SrcBucket string
	SrcKey    string
	Bucket    string
	Key       string
	Data      []byte
}

type MockBlobStore struct {
	mu  sync.Mutex
	ops []BlobOp

	OptimizeAndStoreFunc func(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	CopyFunc             func(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	PutFunc              func(ctx context.Context, bucket, key string, data []byte, contentType string) error
	DeleteFunc           func(ctx context.Context, bucket, key string) error
	PresignFunc          func(ctx context.Context, bucket, key string) (string, error)
}

var _ adapter.BlobStore = (*MockBlobStore)(nil)

func NewMockBlobStore() *MockBlobStore { return &MockBlobStore{} }

func (m *MockBlobStore) record(op BlobOp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

// Ops returns a snapshot of every recorded call.
func (m *MockBlobStore) Ops() []BlobOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BlobOp, len(m.ops))
	copy(out, m.ops)
	return out
}

// OpsNamed filters the recorded calls by operation.
func (m *MockBlobStore) OpsNamed(op string) []BlobOp {
	var out []BlobOp
	for _, o := range m.Ops() {
		if o.Op == op {
			out = append(out, o)
		}
	}
	return out
}

func (m *MockBlobStore) OptimizeAndStore(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.record(BlobOp{Op: "optimize", SrcBucket: srcBucket, SrcKey: srcKey, Bucket: dstBucket, Key: dstKey})
	if m.OptimizeAndStoreFunc != nil {
		return m.OptimizeAndStoreFunc(ctx, srcBucket, srcKey, dstBucket, dstKey)
	}
	return nil
}

func (m *MockBlobStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	m.record(BlobOp{Op: "copy", SrcBucket: srcBucket, SrcKey: srcKey, Bucket: dstBucket, Key: dstKey})
	if m.CopyFunc != nil {
		return m.CopyFunc(ctx, srcBucket, srcKey, dstBucket, dstKey)
	}
	return nil
}

func (m *MockBlobStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	m.record(BlobOp{Op: "put", Bucket: bucket, Key: key, Data: data})
	if m.PutFunc != nil {
		return m.PutFunc(ctx, bucket, key, data, contentType)
	}
	return nil
}

func (m *MockBlobStore) Delete(ctx context.Context, bucket, key string) error {
	m.record(BlobOp{Op: "delete", Bucket: bucket, Key: key})
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, bucket, key)
	}
	return nil
}

func (m *MockBlobStore) PresignedDownloadURL(ctx context.Context, bucket, key string) (string, error) {
	m.record(BlobOp{Op: "presign", Bucket: bucket, Key: key})
	if m.PresignFunc != nil {
		return m.PresignFunc(ctx, bucket, key)
	}
	return "mock://" + bucket + "/" + key, nil
}

// stubKeys derives deterministic object keys for tests.
type stubKeys struct{}

var _ adapter.KeyStrategy = stubKeys{}

func (stubKeys) UploadKey(userID, jobID, fileName string) string {
	return "uploads/" + userID + "/" + jobID + "/" + fileName
}
func (stubKeys) OptimizedKey(userID, jobID, fileName string) string {
	return "optimized/" + userID + "/" + jobID + "/" + fileName
}
func (stubKeys) FinalKey(userID, jobID, fileName string) string {
	return "results/" + userID + "/" + jobID + "/" + fileName
}

// =============================
// Fetcher and notifier
// =============================

type MockFetcher struct {
	mu   sync.Mutex
	URLs []string

	FetchFunc func(ctx context.Context, url string) ([]byte, error)
}

var _ adapter.Fetcher = (*MockFetcher)(nil)

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	m.URLs = append(m.URLs, url)
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return []byte("edited-image-bytes"), nil
}

type MockNotifier struct {
	mu      sync.Mutex
	Jobs    []*model.Job
	Batches []*model.BatchJob

	NotifyJobStatusFunc     func(ctx context.Context, job *model.Job) error
	NotifyBatchCompleteFunc func(ctx context.Context, batch *model.BatchJob) error
}

var _ adapter.NotificationSink = (*MockNotifier)(nil)

func (m *MockNotifier) NotifyJobStatus(ctx context.Context, job *model.Job) error {
	m.mu.Lock()
	cp := *job
	m.Jobs = append(m.Jobs, &cp)
	m.mu.Unlock()
	if m.NotifyJobStatusFunc != nil {
		return m.NotifyJobStatusFunc(ctx, job)
	}
	return nil
}

func (m *MockNotifier) NotifyBatchComplete(ctx context.Context, batch *model.BatchJob) error {
	m.mu.Lock()
	cp := *batch
	m.Batches = append(m.Batches, &cp)
	m.mu.Unlock()
	if m.NotifyBatchCompleteFunc != nil {
		return m.NotifyBatchCompleteFunc(ctx, batch)
	}
	return nil
}
