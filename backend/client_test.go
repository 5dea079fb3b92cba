// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/model"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Address: server.URL,
		Logger:  zap.NewNop(),
	}, nil)
	require.NoError(t, err)
	return client
}

func TestValidateClientConfig(t *testing.T) {
	tcs := []struct {
		Description string
		Input       ClientConfig
		ExpectedErr error
	}{
		{
			Description: "No address",
			Input:       ClientConfig{},
			ExpectedErr: ErrAddressEmpty,
		},
		{
			Description: "Defaults applied",
			Input:       ClientConfig{Address: "http://backend.example.io"},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			err := validateClientConfig(&tc.Input)
			assert.Equal(tc.ExpectedErr, err)
			if tc.ExpectedErr == nil {
				assert.Equal(http.DefaultClient, tc.Input.HTTPClient)
				assert.NotNil(tc.Input.Logger)
			}
		})
	}
}

func TestListContent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodGet, r.Method)
		assert.Equal("/api/v1/channels/ch1/content", r.URL.Path)
		assert.Equal("owner-1", r.Header.Get(OwnerHeaderKey))
		assert.Equal("p2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"records":[{"id":"r1","fileName":"sk_abc_001.mp4"}],"nextPage":"p3"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	out, err := client.ListContent(context.Background(), ListContentInput{
		ChannelID: "ch1",
		Owner:     "owner-1",
		Page:      "p2",
	})
	require.NoError(err)
	assert.Equal("p3", out.NextPage)
	require.Len(out.Records, 1)
	assert.Equal("r1", out.Records[0].ID)
	assert.False(out.Records[0].MetadataPresent())
}

func TestListContentRequiresChannel(t *testing.T) {
	client, err := NewClient(ClientConfig{Address: "http://backend.example.io", Logger: zap.NewNop()}, nil)
	require.NoError(t, err)
	_, err = client.ListContent(context.Background(), ListContentInput{})
	assert.Equal(t, ErrChannelIDEmpty, err)
}

func TestUpload(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/api/v1/uploads", r.URL.Path)
		require.NoError(r.ParseMultipartForm(1 << 20))
		assert.Equal("u1", r.FormValue("uploadId"))
		assert.Equal("ch1", r.FormValue("channelId"))

		file, header, err := r.FormFile(uploadMediaField)
		require.NoError(err)
		defer file.Close()
		assert.Equal("episode1.mp4", header.Filename)

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"destinationKey":"sk_abc"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	out, err := client.Upload(context.Background(), UploadInput{
		UploadID:  "u1",
		ChannelID: "ch1",
		FileName:  "episode1.mp4",
		Source:    strings.NewReader("fake media bytes"),
		Owner:     "owner-1",
	})
	require.NoError(err)
	assert.Equal("sk_abc", out.DestinationKey)
}

func TestUploadValidation(t *testing.T) {
	assert := assert.New(t)
	client, err := NewClient(ClientConfig{Address: "http://backend.example.io", Logger: zap.NewNop()}, nil)
	require.NoError(t, err)

	_, err = client.Upload(context.Background(), UploadInput{ChannelID: "ch1", FileName: "f"})
	assert.True(errors.Is(err, ErrBadRequest))

	_, err = client.Upload(context.Background(), UploadInput{UploadID: "u1", ChannelID: "ch1", FileName: "f"})
	assert.Equal(ErrUploadSourceEmpty, err)
}

func TestAttachMetadataConflictIsTyped(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	title := "Ep1"
	err := client.AttachMetadata(context.Background(), AttachMetadataInput{
		RecordID: "r1",
		Metadata: model.UploadMetadata{Title: &title},
	})
	assert.True(errors.Is(err, ErrMetadataAlreadySet))
}

func TestAttachMetadata(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPut, r.Method)
		assert.Equal("/api/v1/content/r1/metadata", r.URL.Path)
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	title := "Ep1"
	err := client.AttachMetadata(context.Background(), AttachMetadataInput{
		RecordID: "r1",
		Metadata: model.UploadMetadata{Title: &title},
	})
	require.NoError(err)

	err = client.AttachMetadata(context.Background(), AttachMetadataInput{})
	assert.Equal(ErrRecordIDEmpty, err)
}

func TestDecodableErrorBodySurfacesProviderCode(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"InvalidParameterException","message":"price must be non-negative"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.ListContent(context.Background(), ListContentInput{ChannelID: "ch1"})
	require.Error(err)

	var apiErr *APIError
	require.True(errors.As(err, &apiErr))
	assert.Equal("InvalidParameterException", apiErr.ProviderCode())
	assert.Equal(http.StatusBadRequest, apiErr.StatusCode())
}

func TestTranslateNonSuccessStatusCode(t *testing.T) {
	tcs := []struct {
		Code     int
		Expected error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrFailedAuthentication},
		{http.StatusForbidden, ErrFailedAuthentication},
		{http.StatusNotFound, ErrRecordNotFound},
		{http.StatusConflict, ErrMetadataAlreadySet},
		{http.StatusTooManyRequests, ErrTooManyRequests},
		{http.StatusInternalServerError, errNonSuccessResponse},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.Expected, translateNonSuccessStatusCode(tc.Code))
	}
}

func TestSetVisibility(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/v1/content/r1/visibility", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(err)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(client.SetVisibility(context.Background(), SetVisibilityInput{RecordID: "r1", Private: true}))
	assert.JSONEq(`{"private":true}`, gotBody)
}

func TestResolveDestinationKey(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/api/v1/channels/ch1/destination-key", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"destinationKey":"sk_abc"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	key, err := client.ResolveDestinationKey(context.Background(), ResolveDestinationKeyInput{ChannelID: "ch1"})
	require.NoError(err)
	assert.Equal("sk_abc", key)
}

func TestListChannels(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodGet, r.Method)
		assert.Equal("/api/v1/channels", r.URL.Path)
		assert.Equal("news", r.URL.Query().Get("query"))
		w.Write([]byte(`{"channels":[{"id":"ch1","name":"News"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	out, err := client.ListChannels(context.Background(), ListChannelsInput{
		Query: "news",
		Owner: "owner-1",
	})
	require.NoError(err)
	require.Len(out.Channels, 1)
	assert.Equal("ch1", out.Channels[0].ID)
}

func TestCheckReadiness(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/v1/readiness", r.URL.Path)
		assert.Equal("sk_abc", r.URL.Query().Get("destinationKey"))
		w.Write([]byte(`{"ready":true,"record":{"id":"r1","fileName":"sk_abc_001.mp4","hasPlayableUrl":true,"hasThumbnail":true}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	out, err := client.CheckReadiness(context.Background(), CheckReadinessInput{
		DestinationKey: "sk_abc",
		Owner:          "owner-1",
	})
	require.NoError(err)
	assert.True(out.Ready)
	assert.Equal("r1", out.Record.ID)
	assert.True(out.Record.HasPlayableURL)
}
