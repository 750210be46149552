package engines

import (
	"encoding/base64"
	"errors"

	"github.com/miovo/miovo/internal/tts"
)

// TaskStatus is the lifecycle state of a gateway task.
type TaskStatus string

const (
	TaskIdle       TaskStatus = "idle"
	TaskQueued     TaskStatus = "queued"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskResponse is the envelope every gateway job endpoint answers with.
// Timestamps are kept as sent: the gateway writes ISO-8601 without a zone
// offset, which time.Time does not parse.
type TaskResponse struct {
	TaskID    string         `json:"task_id"`
	Type      string         `json:"type"`
	Status    TaskStatus     `json:"status"`
	Progress  float64        `json:"progress"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// Err returns nil for a completed task and a MALFORMED_RESPONSE error
// carrying the gateway's message otherwise.
func (t *TaskResponse) Err() error {
	if t.Status == TaskCompleted {
		return nil
	}
	msg := t.Error
	if msg == "" {
		msg = "task " + string(t.Status)
	}
	return tts.NewMalformedResponseError("gateway task did not complete", errors.New(msg)).
		WithContext("task_id", t.TaskID).
		WithContext("status", string(t.Status))
}

// Field decodes a base64 field of the task result.
func (t *TaskResponse) Field(name string) ([]byte, error) {
	if err := t.Err(); err != nil {
		return nil, err
	}
	raw, ok := t.Result[name].(string)
	if !ok || raw == "" {
		return nil, tts.NewMalformedResponseError("no "+name+" in response", nil)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, tts.NewMalformedResponseError("invalid "+name, err)
	}
	return data, nil
}

// Audio decodes result.audio_base64.
func (t *TaskResponse) Audio() ([]byte, error) {
	return t.Field("audio_base64")
}
