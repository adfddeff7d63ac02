// File: internal/infra/queue/events.go
package queue

// Event kinds accepted from upstream upload handlers.
const (
	KindJob    = "job"    // process an already persisted job
	KindSubmit = "submit" // create a single job, then process it
	KindBatch  = "batch"  // create a batch and fan out one job per object
)

// UploadEvent is the queue wire format. Which fields matter depends on Kind:
// job events carry JobID+ObjectKey, submit events carry the job inputs, and
// batch events carry the per-object slices.
type UploadEvent struct {
	Kind string `json:"kind"`

	JobID     string `json:"job_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ObjectKey string `json:"object_key,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Locale    string `json:"locale,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`

	SharedPrompt string   `json:"shared_prompt,omitempty"`
	ObjectKeys   []string `json:"object_keys,omitempty"`
	Prompts      []string `json:"prompts,omitempty"`
}
