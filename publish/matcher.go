// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package publish

import (
	"strings"

	"github.com/airlift-media/airlift/model"
)

// matchRecord scans a listings page for the record produced by an upload
// keyed with destinationKey. A record qualifies when its file name embeds
// the key and it carries no metadata yet; anything already annotated
// belongs to an earlier publish. The first qualifying record wins and the
// candidate count is reported so concurrent same-key publishes can be
// logged when they collide.
func matchRecord(records []model.ContentRecord, destinationKey string) (model.ContentRecord, int) {
	var (
		matched    model.ContentRecord
		candidates int
	)
	for _, record := range records {
		if !strings.Contains(record.FileName, destinationKey) {
			continue
		}
		if record.MetadataPresent() {
			continue
		}
		if candidates == 0 {
			matched = record
		}
		candidates++
	}
	return matched, candidates
}
