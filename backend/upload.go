// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUploadSourceEmpty = errors.New("upload source is required")

	errMultipartAssembly = errors.New("failed assembling multipart upload body")
)

const uploadMediaField = "media"

var uploadValidator = validator.New()

// Upload streams the media asset to the ingestion endpoint, tagged with
// the caller-generated upload id. The body is piped rather than buffered
// so large assets do not sit in memory.
func (c *Client) Upload(ctx context.Context, input UploadInput) (UploadOutput, error) {
	if err := uploadValidator.Struct(input); err != nil {
		return UploadOutput{}, fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	if input.Source == nil {
		return UploadOutput{}, ErrUploadSourceEmpty
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(form, input))
	}()

	resp, err := c.sendRequest(ctx, input.Owner, http.MethodPost, c.baseURL+"/uploads", pr, form.FormDataContentType())
	if err != nil {
		return UploadOutput{}, err
	}
	switch resp.Code {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return UploadOutput{}, c.failure(ctx, "Upload", resp)
	}

	// the acknowledgment body is optional; an empty one just means the
	// destination key has to be resolved separately
	var out UploadOutput
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			return UploadOutput{}, fmt.Errorf("Upload: %w: %s", errJSONUnmarshal, err.Error())
		}
	}
	return out, nil
}

func writeUploadForm(form *multipart.Writer, input UploadInput) error {
	if err := form.WriteField("uploadId", input.UploadID); err != nil {
		return fmt.Errorf(errWrappedFmt, errMultipartAssembly, err.Error())
	}
	if err := form.WriteField("channelId", input.ChannelID); err != nil {
		return fmt.Errorf(errWrappedFmt, errMultipartAssembly, err.Error())
	}
	part, err := form.CreateFormFile(uploadMediaField, input.FileName)
	if err != nil {
		return fmt.Errorf(errWrappedFmt, errMultipartAssembly, err.Error())
	}
	if _, err := io.Copy(part, input.Source); err != nil {
		return fmt.Errorf(errWrappedFmt, errMultipartAssembly, err.Error())
	}
	return form.Close()
}
