package model

import (
	"time"

	"github.com/google/uuid"
)

// SubjectSnapshotWritten is the NATS subject announcing a freshly written output file.
const SubjectSnapshotWritten = "evt.fred.snapshot.written.v1"

// SnapshotEvent is published after an output file has been fully written.
type SnapshotEvent struct {
	ID           uuid.UUID `json:"id"`
	RunID        uuid.UUID `json:"run_id"`
	Job          string    `json:"job"`
	Path         string    `json:"path"`
	Layout       Layout    `json:"layout"`
	Series       []string  `json:"series"`
	Observations int       `json:"observations"`
	Timestamp    time.Time `json:"timestamp"`
}
