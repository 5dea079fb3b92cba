// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"io"

	"github.com/airlift-media/airlift/model"
)

// ListChannelsInput contains all the needed parameters for ListChannels.
type ListChannelsInput struct {
	// Query is the search string channels should be filtered on.
	// (Optional)
	Query string

	// Page is the page token from a previous output. (Optional)
	Page string

	// Owner is the identity the request is made on behalf of.
	Owner string
}

// ListChannelsOutput contains all the output parameters for ListChannels.
// Note: errors are reported separately.
type ListChannelsOutput struct {
	Channels []model.Channel `json:"channels"`
	NextPage string          `json:"nextPage,omitempty"`
}

// ListContentInput contains all the needed parameters for ListContent.
type ListContentInput struct {
	ChannelID string

	// Page is the page token from a previous output. (Optional)
	Page string

	Owner string
}

// ListContentOutput contains all the output parameters for ListContent.
type ListContentOutput struct {
	Records  []model.ContentRecord `json:"records"`
	NextPage string                `json:"nextPage,omitempty"`
}

// UploadInput contains all the needed parameters for Upload.
type UploadInput struct {
	// UploadID is the client-generated token embedded in the request so
	// the server can tag the resulting record. The server is not required
	// to honor it.
	UploadID string `validate:"required"`

	// ChannelID is the destination channel.
	ChannelID string `validate:"required"`

	// FileName is the local name of the media asset.
	FileName string `validate:"required"`

	// Source streams the media asset body. Required.
	Source io.Reader `validate:"-"`

	Owner string
}

// UploadOutput contains all the output parameters for Upload.
type UploadOutput struct {
	// DestinationKey is the ingestion key the server filed the media
	// under, when the acknowledgment includes one.
	DestinationKey string `json:"destinationKey,omitempty"`
}

// AttachMetadataInput contains all the needed parameters for AttachMetadata.
type AttachMetadataInput struct {
	// RecordID scopes the write to exactly one content record.
	RecordID string

	Metadata model.UploadMetadata

	Owner string
}

// SetVisibilityInput contains all the needed parameters for SetVisibility.
type SetVisibilityInput struct {
	RecordID string
	Private  bool
	Owner    string
}

// ResolveDestinationKeyInput contains all the needed parameters for
// ResolveDestinationKey.
type ResolveDestinationKeyInput struct {
	ChannelID string
	Owner     string
}

// CheckReadinessInput contains all the needed parameters for CheckReadiness.
type CheckReadinessInput struct {
	DestinationKey string
	Owner          string
}

// CheckReadinessOutput contains all the output parameters for CheckReadiness.
type CheckReadinessOutput struct {
	Ready  bool                `json:"ready"`
	Record model.ContentRecord `json:"record"`
}

type destinationKeyBody struct {
	DestinationKey string `json:"destinationKey"`
}

type visibilityBody struct {
	Private bool `json:"private"`
}
