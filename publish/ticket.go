// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"time"

	"github.com/airlift-media/airlift/model"
)

// State is where a ticket sits in its lifecycle. Transitions only move
// forward, in the order the constants are declared; Failed and Abandoned
// are terminal.
type State int

const (
	// StateCreated means the ticket exists but nothing has been sent.
	StateCreated State = iota

	// StateSubmitted means the ingestion endpoint acknowledged the upload.
	StateSubmitted

	// StateAwaitingRecord means the pipeline is polling for the content
	// record the server creates out-of-band.
	StateAwaitingRecord

	// StateReconciling means a matching record was found and the metadata
	// attach is in progress.
	StateReconciling

	// StateDone means the metadata landed on exactly one record.
	StateDone

	// StateFailed means the submission itself failed; nothing reached the
	// server.
	StateFailed

	// StateAbandoned means the retry budget ran out after submission. The
	// asset is still safe server-side; it just surfaces without metadata.
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StateAwaitingRecord:
		return "awaiting_record"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateAbandoned
}

// Ticket tracks one user-initiated publish from submission to metadata
// reconciliation. The pipeline owns the ticket for its lifetime; callers
// observe it through snapshots.
type Ticket struct {
	// UploadID is the client-generated token tagged onto the upload.
	UploadID string `json:"uploadId"`

	// ChannelID is the destination channel.
	ChannelID string `json:"channelId"`

	// Owner is the identity the upload belongs to.
	Owner string `json:"owner"`

	// DestinationKey is the server-issued ingestion key used to recognize
	// the content record once it appears.
	DestinationKey string `json:"destinationKey,omitempty"`

	// FileName is the local name of the uploaded asset.
	FileName string `json:"fileName"`

	// Metadata is what will be attached to the matched record.
	Metadata model.UploadMetadata `json:"metadata"`

	SubmittedAt time.Time `json:"submittedAt"`

	State State `json:"state"`

	// MatchedRecordID is filled once a record matched, for the logs.
	MatchedRecordID string `json:"matchedRecordId,omitempty"`
}
