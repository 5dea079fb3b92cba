// SPDX-FileCopyrightText: 2026 Airlift Media, LLC
// SPDX-License-Identifier: Apache-2.0

// Package publish drives a media upload from submission through metadata
// reconciliation. The server creates content records out-of-band after
// transcoding, so attaching the user's metadata means polling the channel
// listing until the new record appears, picking it out by destination key,
// and writing the metadata to exactly that record. Each upload is tracked
// by a ticket; tickets survive restarts so an interrupted reconciliation
// can be resumed.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/airlift-media/airlift/backend"
	"github.com/airlift-media/airlift/cache"
	"github.com/airlift-media/airlift/classify"
	"github.com/airlift-media/airlift/model"
	"github.com/airlift-media/airlift/store"
	"github.com/airlift-media/airlift/watch"
)

// Errors that can be returned by the pipeline. Tests should use errors.Is.
var (
	ErrBackendRequired = errors.New("a backend client is required")
	ErrSourceRequired  = errors.New("an upload source is required")
	ErrTicketNotFound  = errors.New("no ticket exists for that upload id")
	ErrTicketTerminal  = errors.New("ticket already reached a terminal state")
	ErrRecordNotReady  = errors.New("record has no playable rendition or thumbnail yet")
)

const (
	defaultPollInterval     = time.Second * 5
	defaultPollMaxAttempts  = 24
	defaultAttachRetries    = 3
	defaultAttachRetryDelay = time.Second * 2

	// ticketKeyPrefix namespaces persisted tickets in the durable store.
	ticketKeyPrefix = "tickets/"

	submitFailedMessage = "We couldn't start your upload. Please check your connection and try again."
)

// Backend is the slice of the API client the pipeline needs. *backend.Client
// satisfies it.
type Backend interface {
	Upload(ctx context.Context, input backend.UploadInput) (backend.UploadOutput, error)
	ListContent(ctx context.Context, input backend.ListContentInput) (backend.ListContentOutput, error)
	AttachMetadata(ctx context.Context, input backend.AttachMetadataInput) error
	SetVisibility(ctx context.Context, input backend.SetVisibilityInput) error
	ResolveDestinationKey(ctx context.Context, input backend.ResolveDestinationKeyInput) (string, error)
	CheckReadiness(ctx context.Context, input backend.CheckReadinessInput) (backend.CheckReadinessOutput, error)
}

// Request describes one media asset to publish.
type Request struct {
	// ChannelID is the destination channel.
	ChannelID string

	// Owner is the identity the publish runs on behalf of.
	Owner string

	// FileName is the local name of the media asset.
	FileName string

	// Source streams the media asset body.
	Source io.Reader

	// Metadata is attached to the content record once it appears. An empty
	// Metadata completes the ticket right after upload.
	Metadata model.UploadMetadata
}

// Config contains the arguments to build a Pipeline.
type Config struct {
	// Backend performs the server calls. Required.
	Backend Backend

	// Cache holds the listing data invalidated when a publish lands.
	// (Optional)
	Cache *cache.Tiered

	// Tickets persists in-flight tickets across restarts. (Optional)
	Tickets store.S

	// Logger for the pipeline and its background reconciliations.
	// (Optional) By default sallust's default logger is used.
	Logger *zap.Logger

	// PollInterval is the pause between record polls.
	// (Optional) Defaults to 5 seconds.
	PollInterval time.Duration

	// PollMaxAttempts is the record poll budget per ticket.
	// (Optional) Defaults to 24 attempts.
	PollMaxAttempts int

	// AttachRetries is how many times a metadata attach is tried.
	// (Optional) Defaults to 3.
	AttachRetries int

	// AttachRetryDelay is the pause between attach attempts.
	// (Optional) Defaults to 2 seconds.
	AttachRetryDelay time.Duration

	// Measures records terminal ticket outcomes. (Optional)
	Measures *Measures

	// WatchMeasures records record poll outcomes. (Optional)
	WatchMeasures *watch.Measures

	// Now is the time source. (Optional) Defaults to time.Now.
	Now func() time.Time
}

func validateConfig(config *Config) error {
	if config.Backend == nil {
		return ErrBackendRequired
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.PollMaxAttempts < 1 {
		config.PollMaxAttempts = defaultPollMaxAttempts
	}
	if config.AttachRetries < 1 {
		config.AttachRetries = defaultAttachRetries
	}
	if config.AttachRetryDelay <= 0 {
		config.AttachRetryDelay = defaultAttachRetryDelay
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return nil
}

// Pipeline runs publishes. All methods are safe for concurrent use.
type Pipeline struct {
	config Config

	lock    sync.Mutex
	tickets map[string]*Ticket
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New builds a Pipeline from the given configuration.
func New(config Config) (*Pipeline, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &Pipeline{
		config:  config,
		tickets: make(map[string]*Ticket),
		cancels: make(map[string]context.CancelFunc),
	}, nil
}

// Submit uploads the media and returns the resulting ticket in the
// submitted state. It blocks for the duration of the upload but does not
// start reconciliation. A failed upload returns a terminal failed ticket
// along with a classified error fit for direct display.
func (p *Pipeline) Submit(ctx context.Context, request Request) (Ticket, error) {
	if request.Source == nil {
		return Ticket{}, ErrSourceRequired
	}

	ticket := &Ticket{
		UploadID:  uuid.NewString(),
		ChannelID: request.ChannelID,
		Owner:     request.Owner,
		FileName:  request.FileName,
		Metadata:  request.Metadata,
		State:     StateCreated,
	}
	p.lock.Lock()
	p.tickets[ticket.UploadID] = ticket
	p.lock.Unlock()

	logger := p.config.Logger.With(
		zap.String("uploadId", ticket.UploadID),
		zap.String("channelId", ticket.ChannelID))

	output, err := p.config.Backend.Upload(ctx, backend.UploadInput{
		UploadID:  ticket.UploadID,
		ChannelID: request.ChannelID,
		FileName:  request.FileName,
		Source:    request.Source,
		Owner:     request.Owner,
	})
	if err != nil {
		logger.Error("upload submission failed", zap.Error(err))
		failed := p.transition(ticket.UploadID, StateFailed, logger)
		p.config.Measures.countOutcome(StateFailed)
		return failed, classify.Classify(err, submitFailedMessage)
	}

	key := output.DestinationKey
	if key == "" {
		key, err = p.config.Backend.ResolveDestinationKey(ctx,
			backend.ResolveDestinationKeyInput{ChannelID: request.ChannelID, Owner: request.Owner})
		if err != nil {
			// Reconciliation cannot match a record without the key; the run
			// for this ticket will abandon and the asset stays unannotated.
			logger.Warn("destination key resolution failed", zap.Error(err))
			key = ""
		}
	}

	p.lock.Lock()
	ticket.DestinationKey = key
	ticket.SubmittedAt = p.config.Now()
	p.lock.Unlock()

	return p.transition(ticket.UploadID, StateSubmitted, logger), nil
}

// Publish submits the media and reconciles its metadata in the background.
// The returned ticket is the submitted snapshot; its later progress can be
// observed through Ticket. Reconciliation runs detached from ctx and is
// stopped with Cancel or Shutdown.
func (p *Pipeline) Publish(ctx context.Context, request Request) (Ticket, error) {
	ticket, err := p.Submit(ctx, request)
	if err != nil {
		return ticket, err
	}
	p.spawn(ticket.UploadID)
	return ticket, nil
}

// Reconcile drives the given ticket to a terminal state, blocking until it
// gets there or ctx is cancelled. Reconciliation failures never surface as
// errors; they end the ticket as abandoned. The returned error only
// reports tickets that cannot be reconciled at all.
func (p *Pipeline) Reconcile(ctx context.Context, uploadID string) error {
	ticket, ok := p.Ticket(uploadID)
	if !ok {
		return ErrTicketNotFound
	}
	if ticket.State.Terminal() {
		return ErrTicketTerminal
	}
	p.reconcile(ctx, uploadID)
	return nil
}

// Resume restarts reconciliation for a restored in-flight ticket in the
// background.
func (p *Pipeline) Resume(uploadID string) error {
	ticket, ok := p.Ticket(uploadID)
	if !ok {
		return ErrTicketNotFound
	}
	if ticket.State.Terminal() {
		return ErrTicketTerminal
	}
	p.spawn(uploadID)
	return nil
}

// Restore loads persisted in-flight tickets into the pipeline and returns
// their snapshots. Corrupt ticket rows are dropped from the store. Call it
// once at startup, before any Submit, then Resume each returned ticket.
func (p *Pipeline) Restore() ([]Ticket, error) {
	if p.config.Tickets == nil {
		return nil, nil
	}
	keys, err := p.config.Tickets.Keys(ticketKeyPrefix)
	if err != nil {
		return nil, err
	}

	var restored []Ticket
	for _, key := range keys {
		data, err := p.config.Tickets.Get(key)
		if err != nil {
			continue
		}
		var ticket Ticket
		if err := json.Unmarshal(data, &ticket); err != nil || ticket.UploadID == "" {
			p.config.Logger.Warn("dropping undecodable ticket", zap.String("key", key))
			if err := p.config.Tickets.Delete(key); err != nil {
				p.config.Logger.Error("ticket cleanup failed", zap.String("key", key), zap.Error(err))
			}
			continue
		}

		p.lock.Lock()
		p.tickets[ticket.UploadID] = &ticket
		p.lock.Unlock()
		restored = append(restored, ticket)
	}
	return restored, nil
}

// Cancel stops the background reconciliation for the given ticket, if one
// is running. The ticket keeps its current state and stays persisted, so
// it can still be resumed.
func (p *Pipeline) Cancel(uploadID string) {
	p.lock.Lock()
	cancel, ok := p.cancels[uploadID]
	delete(p.cancels, uploadID)
	p.lock.Unlock()
	if ok {
		cancel()
	}
}

// Shutdown cancels all background reconciliations and waits for them to
// stop.
func (p *Pipeline) Shutdown() {
	p.lock.Lock()
	for uploadID, cancel := range p.cancels {
		delete(p.cancels, uploadID)
		cancel()
	}
	p.lock.Unlock()
	p.wg.Wait()
}

// Ticket returns a snapshot of the ticket with the given upload id.
func (p *Pipeline) Ticket(uploadID string) (Ticket, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	ticket, ok := p.tickets[uploadID]
	if !ok {
		return Ticket{}, false
	}
	return *ticket, true
}

// Prune drops terminal tickets from the in-memory set and reports how
// many were dropped. Finished tickets stick around so their outcomes can
// still be queried; the app layer prunes once it has consumed them.
func (p *Pipeline) Prune() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	pruned := 0
	for uploadID, ticket := range p.tickets {
		if ticket.State.Terminal() {
			delete(p.tickets, uploadID)
			pruned++
		}
	}
	return pruned
}

// Tickets returns snapshots of every ticket the pipeline knows about.
func (p *Pipeline) Tickets() []Ticket {
	p.lock.Lock()
	defer p.lock.Unlock()
	tickets := make([]Ticket, 0, len(p.tickets))
	for _, ticket := range p.tickets {
		tickets = append(tickets, *ticket)
	}
	return tickets
}

// VisibilityRequest describes one visibility flip.
type VisibilityRequest struct {
	// ChannelID is the channel whose cached listings are invalidated once
	// the flip succeeds.
	ChannelID string

	// Record is the caller's snapshot of the record to flip.
	Record model.ContentRecord

	// DestinationKey, when set, allows an unready-looking snapshot to be
	// re-checked against the backend before the flip is refused. Listing
	// snapshots lag transcoding, so a stale snapshot is not the last word.
	// (Optional)
	DestinationKey string

	// Private is the desired privacy flag.
	Private bool
}

// ToggleVisibility flips a record between private and public. Records that
// have not finished transcoding reject visibility changes server-side, so
// readiness is established first and ErrRecordNotReady returned without a
// wasted flip.
func (p *Pipeline) ToggleVisibility(ctx context.Context, owner string, req VisibilityRequest) error {
	record := req.Record
	if !record.HasPlayableURL || !record.HasThumbnail {
		if req.DestinationKey == "" {
			return ErrRecordNotReady
		}
		out, err := p.config.Backend.CheckReadiness(ctx, backend.CheckReadinessInput{
			DestinationKey: req.DestinationKey,
			Owner:          owner,
		})
		if err != nil {
			return err
		}
		if !out.Ready {
			return ErrRecordNotReady
		}
		record = out.Record
		if record.ID == "" {
			record.ID = req.Record.ID
		}
	}
	err := p.config.Backend.SetVisibility(ctx, backend.SetVisibilityInput{
		RecordID: record.ID,
		Private:  req.Private,
		Owner:    owner,
	})
	if err != nil {
		return err
	}
	p.invalidateListings(ctx, req.ChannelID)
	return nil
}

func (p *Pipeline) spawn(uploadID string) {
	ctx, cancel := context.WithCancel(context.Background())
	p.lock.Lock()
	p.cancels[uploadID] = cancel
	p.lock.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.Cancel(uploadID)
		p.reconcile(ctx, uploadID)
	}()
}

func (p *Pipeline) reconcile(ctx context.Context, uploadID string) {
	ticket, ok := p.Ticket(uploadID)
	if !ok {
		return
	}
	logger := p.config.Logger.With(
		zap.String("uploadId", ticket.UploadID),
		zap.String("channelId", ticket.ChannelID))

	if ticket.Metadata.Empty() {
		logger.Debug("no metadata to attach")
		p.finish(ctx, uploadID, StateDone, logger)
		return
	}
	if ticket.DestinationKey == "" {
		logger.Warn("abandoning reconciliation without a destination key")
		p.finish(ctx, uploadID, StateAbandoned, logger)
		return
	}

	p.transition(uploadID, StateAwaitingRecord, logger)
	record, outcome := watch.Watch(ctx, p.recordCheck(ticket), watch.Config{
		Interval:    p.config.PollInterval,
		MaxAttempts: p.config.PollMaxAttempts,
		Logger:      logger,
		Measures:    p.config.WatchMeasures,
	})
	switch outcome {
	case watch.Cancelled:
		logger.Info("reconciliation stopped before a record appeared")
		return
	case watch.TimedOut:
		logger.Warn("no content record appeared within the poll budget",
			zap.String("destinationKey", ticket.DestinationKey))
		p.finish(ctx, uploadID, StateAbandoned, logger)
		return
	}

	p.lock.Lock()
	if current, ok := p.tickets[uploadID]; ok {
		current.MatchedRecordID = record.ID
	}
	p.lock.Unlock()
	p.transition(uploadID, StateReconciling, logger)

	if p.attach(ctx, ticket, record, logger) {
		p.invalidateListings(ctx, ticket.ChannelID)
		p.finish(ctx, uploadID, StateDone, logger)
		return
	}
	if ctx.Err() != nil {
		logger.Info("reconciliation stopped mid-attach")
		return
	}
	p.finish(ctx, uploadID, StateAbandoned, logger)
}

// recordCheck builds the poll for the content record this ticket's upload
// should produce.
func (p *Pipeline) recordCheck(ticket Ticket) watch.CheckFunc[model.ContentRecord] {
	return func(ctx context.Context) (model.ContentRecord, bool, error) {
		output, err := p.config.Backend.ListContent(ctx, backend.ListContentInput{
			ChannelID: ticket.ChannelID,
			Owner:     ticket.Owner,
		})
		if err != nil {
			return model.ContentRecord{}, false, err
		}
		record, candidates := matchRecord(output.Records, ticket.DestinationKey)
		if candidates > 1 {
			// Two uploads in flight with the same key. Both records are
			// unannotated so either could be ours; the first one is taken.
			p.config.Logger.Warn("multiple unannotated records share the destination key",
				zap.String("uploadId", ticket.UploadID),
				zap.String("destinationKey", ticket.DestinationKey),
				zap.Int("candidates", candidates))
		}
		return record, candidates > 0, nil
	}
}

func (p *Pipeline) attach(ctx context.Context, ticket Ticket, record model.ContentRecord, logger *zap.Logger) bool {
	for attempt := 1; ; attempt++ {
		err := p.config.Backend.AttachMetadata(ctx, backend.AttachMetadataInput{
			RecordID: record.ID,
			Metadata: ticket.Metadata,
			Owner:    ticket.Owner,
		})
		if err == nil {
			return true
		}
		if errors.Is(err, backend.ErrMetadataAlreadySet) {
			// An earlier attempt landed before its response got lost.
			logger.Debug("metadata already attached", zap.String("recordId", record.ID))
			return true
		}
		logger.Warn("metadata attach failed",
			zap.String("recordId", record.ID),
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt >= p.config.AttachRetries {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(p.config.AttachRetryDelay):
		}
	}
}

// transition moves the ticket to state, persists the new snapshot and
// returns it.
func (p *Pipeline) transition(uploadID string, state State, logger *zap.Logger) Ticket {
	p.lock.Lock()
	ticket, ok := p.tickets[uploadID]
	if !ok {
		p.lock.Unlock()
		return Ticket{}
	}
	ticket.State = state
	snapshot := *ticket
	p.lock.Unlock()

	logger.Debug("ticket state changed", zap.String("state", state.String()))
	p.persist(snapshot, logger)
	return snapshot
}

func (p *Pipeline) finish(ctx context.Context, uploadID string, state State, logger *zap.Logger) {
	p.transition(uploadID, state, logger)
	p.config.Measures.countOutcome(state)
	if p.config.Tickets != nil {
		if err := p.config.Tickets.Delete(ticketKeyPrefix + uploadID); err != nil && !errors.Is(err, store.ErrKeyNotFound) {
			logger.Error("ticket cleanup failed", zap.Error(err))
		}
	}
	logger.Info("ticket finished", zap.String("state", state.String()))
}

// persist writes the ticket snapshot to the durable store. Tickets are
// only durable from submission onward; a persistence failure degrades
// restart recovery but never the publish itself.
func (p *Pipeline) persist(ticket Ticket, logger *zap.Logger) {
	if p.config.Tickets == nil || ticket.State == StateCreated || ticket.State.Terminal() {
		return
	}
	data, err := json.Marshal(ticket)
	if err != nil {
		logger.Error("ticket encoding failed", zap.Error(err))
		return
	}
	if err := p.config.Tickets.Put(ticketKeyPrefix+ticket.UploadID, data); err != nil {
		logger.Error("ticket persistence failed", zap.Error(err))
	}
}

func (p *Pipeline) invalidateListings(ctx context.Context, channelID string) {
	if p.config.Cache == nil {
		return
	}
	p.config.Cache.InvalidateAll(ctx, model.ContentListPrefix(channelID))
}
