// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/classify"
	"github.com/airlift-media/airlift/identity"
	"github.com/airlift-media/airlift/listings"
	"github.com/airlift-media/airlift/model"
	"github.com/airlift-media/airlift/publish"
	"github.com/airlift-media/airlift/registry"
)

const genericFailureMessage = "Something went wrong. Please try again."

// errorBody is what the control API returns on failures. The message is
// already user-presentable; the app layer can render it as-is.
type errorBody struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

var kindStatusCodes = map[classify.Kind]int{
	classify.AccountAlreadyExists: http.StatusConflict,
	classify.InvalidCredentials:   http.StatusUnauthorized,
	classify.AccountNotFound:      http.StatusNotFound,
	classify.AccountNotConfirmed:  http.StatusForbidden,
	classify.RateLimited:          http.StatusTooManyRequests,
	classify.InvalidInput:         http.StatusBadRequest,
	classify.NetworkUnavailable:   http.StatusBadGateway,
	classify.ServerError:          http.StatusBadGateway,
}

func respondJSON(logger *zap.Logger, w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("response encoding failed", zap.Error(err))
	}
}

func respondClassified(logger *zap.Logger, w http.ResponseWriter, err error) {
	classified := classify.Classify(err, genericFailureMessage)
	code, ok := kindStatusCodes[classified.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	respondJSON(logger, w, code, errorBody{
		Message:     classified.UserMessage,
		Recoverable: classified.Recoverable,
	})
}

func handleChannels(service *listings.Service, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		output, err := service.Channels(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			respondClassified(logger, w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, output)
	})
}

func handleContent(service *listings.Service, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		output, err := service.Content(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("page"))
		if err != nil {
			respondClassified(logger, w, err)
			return
		}
		respondJSON(logger, w, http.StatusOK, output)
	})
}

func handlePublish(pipeline *publish.Pipeline, owner string, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("media")
		if err != nil {
			respondJSON(logger, w, http.StatusBadRequest, errorBody{
				Message: "A media file is required.",
			})
			return
		}
		defer file.Close()

		var metadata model.UploadMetadata
		if raw := r.FormValue("metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
				respondJSON(logger, w, http.StatusBadRequest, errorBody{
					Message: "The metadata field is not valid JSON.",
				})
				return
			}
		}

		ticket, err := pipeline.Publish(r.Context(), publish.Request{
			ChannelID: r.FormValue("channelId"),
			Owner:     owner,
			FileName:  header.Filename,
			Source:    file,
			Metadata:  metadata,
		})
		if err != nil {
			respondClassified(logger, w, err)
			return
		}
		respondJSON(logger, w, http.StatusAccepted, ticket)
	})
}

func handleTickets(pipeline *publish.Pipeline, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(logger, w, http.StatusOK, pipeline.Tickets())
	})
}

func handleTicket(pipeline *publish.Pipeline, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ticket, ok := pipeline.Ticket(mux.Vars(r)["id"])
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		respondJSON(logger, w, http.StatusOK, ticket)
	})
}

func handleCancelTicket(pipeline *publish.Pipeline) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pipeline.Cancel(mux.Vars(r)["id"])
		w.WriteHeader(http.StatusNoContent)
	})
}

type prunedBody struct {
	Pruned int `json:"pruned"`
}

func handlePruneTickets(pipeline *publish.Pipeline, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(logger, w, http.StatusOK, prunedBody{Pruned: pipeline.Prune()})
	})
}

type visibilityInputBody struct {
	Private bool `json:"private"`

	// DestinationKey lets the app ask for a server-side readiness check
	// when its listing snapshot still shows the record as processing.
	DestinationKey string `json:"destinationKey,omitempty"`
}

func handleVisibility(service *listings.Service, pipeline *publish.Pipeline, owner string, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		var input visibilityInputBody
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respondJSON(logger, w, http.StatusBadRequest, errorBody{
				Message: "The request body is not valid JSON.",
			})
			return
		}

		listing, err := service.Content(r.Context(), vars["id"], "")
		if err != nil {
			respondClassified(logger, w, err)
			return
		}
		record := model.ContentRecord{ID: vars["recordId"]}
		found := false
		for _, candidate := range listing.Records {
			if candidate.ID == record.ID {
				record = candidate
				found = true
				break
			}
		}
		if !found && input.DestinationKey == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		err = pipeline.ToggleVisibility(r.Context(), owner, publish.VisibilityRequest{
			ChannelID:      vars["id"],
			Record:         record,
			DestinationKey: input.DestinationKey,
			Private:        input.Private,
		})
		switch {
		case errors.Is(err, publish.ErrRecordNotReady):
			respondJSON(logger, w, http.StatusConflict, errorBody{
				Message:     "This video is still processing. Try again in a moment.",
				Recoverable: true,
			})
		case err != nil:
			respondClassified(logger, w, err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
}

type statusBody struct {
	Version        string                   `json:"version"`
	GitCommit      string                   `json:"gitCommit"`
	BuildTime      string                   `json:"buildTime"`
	Owner          string                   `json:"owner"`
	Email          string                   `json:"email,omitempty"`
	ActiveProfile  *model.ConnectionProfile `json:"activeProfile,omitempty"`
	PendingTickets int                      `json:"pendingTickets"`
}

func handleStatus(pipeline *publish.Pipeline, profiles *registry.Registry, id identity.Identity, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := statusBody{
			Version:   Version,
			GitCommit: GitCommit,
			BuildTime: BuildTime,
			Owner:     id.Owner,
			Email:     id.Email,
		}
		if selected, ok := profiles.Selected(); ok {
			body.ActiveProfile = &selected
		}
		for _, ticket := range pipeline.Tickets() {
			if !ticket.State.Terminal() {
				body.PendingTickets++
			}
		}
		respondJSON(logger, w, http.StatusOK, body)
	})
}

type profilesBody struct {
	Profiles   []model.ConnectionProfile `json:"profiles"`
	SelectedID string                    `json:"selectedId,omitempty"`
}

type profileInputBody struct {
	Name           string `json:"name"`
	DestinationURL string `json:"destinationUrl"`
}

func handleProfiles(profiles *registry.Registry, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := profilesBody{Profiles: profiles.List()}
		if selected, ok := profiles.Selected(); ok {
			body.SelectedID = selected.ID
		}
		respondJSON(logger, w, http.StatusOK, body)
	})
}

func handleAddProfile(profiles *registry.Registry, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var input profileInputBody
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			respondJSON(logger, w, http.StatusBadRequest, errorBody{
				Message: "The profile body is not valid JSON.",
			})
			return
		}
		profile, err := profiles.Add(input.Name, input.DestinationURL)
		if err != nil {
			respondJSON(logger, w, http.StatusBadRequest, errorBody{Message: err.Error()})
			return
		}
		respondJSON(logger, w, http.StatusCreated, profile)
	})
}

func handleRemoveProfile(profiles *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := profiles.Remove(mux.Vars(r)["id"]); err != nil {
			if errors.Is(err, registry.ErrProfileNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func handleSelectProfile(profiles *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := profiles.Select(mux.Vars(r)["id"]); err != nil {
			if errors.Is(err, registry.ErrProfileNotFound) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
