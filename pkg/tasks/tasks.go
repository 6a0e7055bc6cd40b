// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// TranscriptIndexTask asks the indexing pipeline to (re)index one video transcript.
// The processor reloads the transcript from the directory, so the task only carries identity.
type TranscriptIndexTask struct {
	TenantID uint   `json:"tenant_id"`
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Status   string `json:"status"` // created | updated
}
