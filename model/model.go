// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// Channel is a publish destination the owner can stream or upload to.
type Channel struct {
	// ID is the backend identifier for the channel.
	ID string `json:"id"`

	// Name is the display name of the channel.
	Name string `json:"name"`

	// Description is the channel blurb, if any.
	Description string `json:"description,omitempty"`

	// Discoverable reports whether the channel shows up in search results.
	Discoverable bool `json:"discoverable"`
}

// ContentRecord is the backend's view of one piece of media. The client
// never creates these directly; it observes their appearance after an
// upload finishes server-side transcoding and, at most once, attaches
// metadata to one of them.
type ContentRecord struct {
	// ID is the backend identifier for the record.
	ID string `json:"id"`

	// FileName is the server-assigned file name. It embeds the destination
	// key the media was ingested under (e.g. "sk_abc_001.mp4").
	FileName string `json:"fileName"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// PriceCents is the asking price in cents; zero means free.
	PriceCents int64 `json:"priceCents,omitempty"`

	// Private hides the record from the channel's public listing.
	Private bool `json:"private"`

	// HasPlayableURL reports that transcoding produced a playable rendition.
	HasPlayableURL bool `json:"hasPlayableUrl"`

	// HasThumbnail reports that a poster frame has been generated.
	HasThumbnail bool `json:"hasThumbnail"`
}

// MetadataPresent reports whether any user metadata has been attached to
// the record. A record with no title, no description and a zero price is
// unannotated, which is what lets the client pick the right record among
// siblings sharing a destination key.
func (r ContentRecord) MetadataPresent() bool {
	return r.Title != "" || r.Description != "" || r.PriceCents != 0
}

// UploadMetadata carries the user-entered fields to be attached to a
// content record. Nil fields are absent, not empty.
type UploadMetadata struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceCents  *int64  `json:"priceCents,omitempty"`
	Private     *bool   `json:"private,omitempty"`
}

// Empty reports whether there is nothing to attach.
func (m UploadMetadata) Empty() bool {
	return m.Title == nil && m.Description == nil && m.PriceCents == nil && m.Private == nil
}

// ConnectionProfile is a named destination endpoint the user can select as
// the active publish target. Exactly one profile is the immutable default.
type ConnectionProfile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DestinationURL string    `json:"destinationUrl"`
	CreatedAt      time.Time `json:"createdAt"`
	Default        bool      `json:"default"`
}
