// Package orchestrator drives the SEU pipeline: unit creation, raw
// registration, meta computation and cube builds over a Repository, with
// every step recorded in the domain event log.
package orchestrator

// #region imports
import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/eval"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/signals"
)

// #endregion

// #region orchestrator-struct

// DefaultParallelism bounds concurrent meta computation inside one build.
const DefaultParallelism = 4

// Orchestrator is the top-level coordinator for the SEU pipeline.
type Orchestrator struct {
	repo        Repository
	producer    *signals.Producer
	assembler   *cube.Assembler
	eval        *eval.EvalHarness
	logger      *zap.Logger
	now         func() time.Time
	parallelism int
	units       *keyedMutex

	rules      *signals.RuleSet
	evalConfig eval.EvalConfig
}

var _ Pipeline = (*Orchestrator)(nil)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The orchestrator logs under the "orchestrator" name.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the clock used for IDs, events and cube stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithParallelism bounds concurrent meta computation. Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithRules swaps the signal rule table.
func WithRules(rs *signals.RuleSet) Option {
	return func(o *Orchestrator) { o.rules = rs }
}

// WithEvalConfig overrides the post-build eval thresholds.
func WithEvalConfig(c eval.EvalConfig) Option {
	return func(o *Orchestrator) { o.evalConfig = c }
}

// #endregion

// #region constructor

// New creates a fully wired orchestrator over repo.
func New(repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:        repo,
		logger:      zap.NewNop(),
		now:         time.Now,
		parallelism: DefaultParallelism,
		units:       newKeyedMutex(),
		evalConfig:  eval.DefaultEvalConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	o.producer = signals.NewProducer(o.rules)
	o.assembler = cube.NewAssembler(repo, cube.WithClock(func() time.Time { return o.now().UTC() }))
	o.eval = eval.NewEvalHarness(o.evalConfig)
	return o
}

// #endregion

// #region create-seu

// CreateSEU opens a unit, generating seu_<local time>_<6 hex> when no ID is given.
func (o *Orchestrator) CreateSEU(ctx context.Context, req CreateSEURequest) (CreateSEUResponse, error) {
	if req.Time.TsStart == "" || req.Time.TsEnd == "" {
		return CreateSEUResponse{}, fmt.Errorf("%w: time.ts_start and time.ts_end required", seu.ErrInvalidRequest)
	}
	if req.DeviceID == "" {
		return CreateSEUResponse{}, fmt.Errorf("%w: device_id required", seu.ErrInvalidRequest)
	}
	if req.PrivacyLevel == "" {
		req.PrivacyLevel = seu.DefaultPrivacyLevel
	}

	now := o.now()
	seuID := req.SEUID
	if seuID == "" {
		seuID = fmt.Sprintf("seu_%s_%s", now.Format("2006-01-02T15:04:05-0700"), hexID()[:6])
	}

	err := o.repo.CreateUnit(ctx, seu.Unit{
		SEUID:        seuID,
		TsStart:      req.Time.TsStart,
		TsEnd:        req.Time.TsEnd,
		DurationMs:   req.Time.DurationMs,
		DeviceID:     req.DeviceID,
		PrivacyLevel: req.PrivacyLevel,
		CreatedAt:    now.UTC(),
	})
	if err != nil {
		return CreateSEUResponse{}, err
	}

	o.emit(ctx, logging.EventSEUCreated, seuID, map[string]any{
		"seu_id": seuID,
		"time": map[string]any{
			"ts_start":    req.Time.TsStart,
			"ts_end":      req.Time.TsEnd,
			"duration_ms": req.Time.DurationMs,
		},
		"device_id":     req.DeviceID,
		"privacy_level": req.PrivacyLevel,
	})
	o.logger.Info("seu created", zap.String("seu_id", seuID), zap.String("device_id", req.DeviceID))

	return CreateSEUResponse{
		SEUID:            seuID,
		Status:           StatusCreated,
		ExpectedChannels: append([]seu.ChannelID(nil), seu.Channels...),
	}, nil
}

// #endregion

// #region register-raw

// RegisterRaw stores one channel observation and points the (SEU, channel)
// slot at it. The unit is created implicitly if it does not exist yet. A
// build in progress for the same SEU finishes first.
func (o *Orchestrator) RegisterRaw(ctx context.Context, req RegisterRawRequest) (RegisterRawResponse, error) {
	ch, err := seu.ParseChannel(req.ChannelID)
	if err != nil {
		return RegisterRawResponse{}, err
	}
	if req.SEUID == "" {
		return RegisterRawResponse{}, fmt.Errorf("%w: seu_id required", seu.ErrInvalidRequest)
	}
	unlock := o.units.Lock(req.SEUID)
	defer unlock()

	rawHash := req.RawHash
	if rawHash == "" {
		sum := sha256.Sum256([]byte(req.RawRef))
		rawHash = hex.EncodeToString(sum[:])
	}

	rec := seu.RawRecord{
		RawID:             "raw_" + hexID(),
		SEUID:             req.SEUID,
		ChannelID:         ch,
		TsStart:           req.TsStart,
		TsEnd:             req.TsEnd,
		RawRef:            req.RawRef,
		RawHash:           rawHash,
		EncryptionKeyID:   orDefault(req.EncryptionKeyID, seu.DefaultEncryptionKeyID),
		RetentionPolicyID: orDefault(req.RetentionPolicyID, seu.DefaultRetentionPolicyID),
		ConsentPolicyID:   orDefault(req.ConsentPolicyID, seu.DefaultConsentPolicyID),
		QualityFlags:      req.QualityFlags,
		Extra:             req.Extra,
		CreatedAt:         o.now().UTC(),
	}
	if err := o.repo.PutRaw(ctx, rec); err != nil {
		return RegisterRawResponse{}, err
	}

	o.emit(ctx, logging.EventRawRegistered, req.SEUID, map[string]any{
		"seu_id":     req.SEUID,
		"channel_id": string(ch),
		"raw_id":     rec.RawID,
		"raw_ref":    rec.RawRef,
		"raw_hash":   rawHash,
	})
	o.logger.Debug("raw registered",
		zap.String("seu_id", req.SEUID), zap.String("channel_id", string(ch)), zap.String("raw_id", rec.RawID))

	return RegisterRawResponse{RawID: rec.RawID, Status: StatusRegistered}, nil
}

// #endregion

// #region compute-meta

// ComputeMeta derives and stores the feature and meta for one channel.
func (o *Orchestrator) ComputeMeta(ctx context.Context, seuID, channelID string) (ComputeMetaResponse, error) {
	ch, err := seu.ParseChannel(channelID)
	if err != nil {
		return ComputeMetaResponse{}, err
	}
	unlock := o.units.Lock(seuID)
	defer unlock()

	meta, err := o.computeMeta(ctx, seuID, ch)
	if err != nil {
		return ComputeMetaResponse{}, err
	}

	o.emit(ctx, logging.EventMetaCreated, seuID, map[string]any{
		"seu_id":     seuID,
		"channel_id": string(ch),
		"meta_key":   seuID + "::" + string(ch),
	})
	return ComputeMetaResponse{SEUID: seuID, ChannelID: ch, Meta: meta}, nil
}

func (o *Orchestrator) computeMeta(ctx context.Context, seuID string, ch seu.ChannelID) (seu.ChannelMeta, error) {
	raw, err := o.repo.GetRaw(ctx, seuID, ch)
	if err != nil {
		return seu.ChannelMeta{}, err
	}
	feat := o.producer.BuildFeature(raw)
	if err := o.repo.PutFeature(ctx, seuID, ch, feat); err != nil {
		return seu.ChannelMeta{}, err
	}
	meta := signals.BuildMeta(ch, feat)
	if err := o.repo.PutMeta(ctx, seuID, meta); err != nil {
		return seu.ChannelMeta{}, err
	}
	return meta, nil
}

// #endregion

// #region build-cube

// BuildCube computes any missing metas, synthesizes, validates and stores the
// cube for seuID. Builds, raw registrations and meta computations for the
// same SEU are serialized. A rebuild over unchanged inputs keeps the stored
// created_at.
func (o *Orchestrator) BuildCube(ctx context.Context, seuID string) (BuildCubeResponse, error) {
	if seuID == "" {
		return BuildCubeResponse{}, fmt.Errorf("%w: seu_id required", seu.ErrInvalidRequest)
	}
	unlock := o.units.Lock(seuID)
	defer unlock()

	present, err := o.repo.RawChannels(ctx, seuID)
	if err != nil {
		return BuildCubeResponse{}, err
	}
	if len(present) < len(seu.Channels) {
		return BuildCubeResponse{}, fmt.Errorf("%w (seu %s: %d of %d)", seu.ErrIncomplete, seuID, len(present), len(seu.Channels))
	}

	if err := o.fillMissingMetas(ctx, seuID); err != nil {
		return BuildCubeResponse{}, err
	}

	c, err := o.assembler.Build(ctx, seuID)
	if err != nil {
		return BuildCubeResponse{}, err
	}

	prev, err := o.repo.GetCube(ctx, seuID)
	switch {
	case err == nil && prev.InputHash == c.InputHash:
		c.PAI.CreatedAt = prev.PAI.CreatedAt
	case err != nil && !errors.Is(err, seu.ErrNotFound):
		return BuildCubeResponse{}, err
	}

	result := o.eval.Run(c)
	if !result.Passed {
		o.logger.Warn("cube rejected",
			zap.String("seu_id", seuID), zap.String("reason", result.Reason), zap.Any("metrics", result.Metrics))
		return BuildCubeResponse{}, fmt.Errorf("%w: %s", ErrCubeRejected, result.Reason)
	}

	if err := o.repo.PutCube(ctx, c); err != nil {
		return BuildCubeResponse{}, err
	}

	o.emit(ctx, logging.EventCubeCreated, seuID, map[string]any{
		"seu_id":         seuID,
		"cognitive_mode": string(c.M.CognitiveMode),
		"mode_label":     c.M.ModeLabel,
		"mode_score":     c.M.ModeScore,
	})
	o.logger.Info("cube written",
		zap.String("seu_id", seuID),
		zap.String("mode", string(c.M.CognitiveMode)),
		zap.Float64("score", c.M.ModeScore),
		zap.String("input_hash", c.InputHash[:12]))

	return BuildCubeResponse{SEUID: seuID, Status: cube.PipelineStatusWritten, Cube: c}, nil
}

// fillMissingMetas computes metas for channels that have none, in parallel.
// These are not announced as channel.meta_created events.
func (o *Orchestrator) fillMissingMetas(ctx context.Context, seuID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for _, ch := range seu.Channels {
		g.Go(func() error {
			_, err := o.repo.GetMeta(gctx, seuID, ch)
			if err == nil {
				return nil
			}
			if !errors.Is(err, seu.ErrNotFound) {
				return err
			}
			_, err = o.computeMeta(gctx, seuID, ch)
			return err
		})
	}
	return g.Wait()
}

// #endregion

// #region reads

// GetCube returns the stored cube for seuID.
func (o *Orchestrator) GetCube(ctx context.Context, seuID string) (cube.Cube, error) {
	return o.repo.GetCube(ctx, seuID)
}

// Events returns the last limit domain events in emission order.
func (o *Orchestrator) Events(ctx context.Context, limit int) ([]logging.Event, error) {
	return logging.RecentEvents(ctx, o.repo.DB(), limit)
}

// PendingUnits lists SEUs with all raws registered and no fresh cube.
func (o *Orchestrator) PendingUnits(ctx context.Context) ([]string, error) {
	return o.repo.PendingUnits(ctx)
}

// #endregion

// #region helpers

// emit records a domain event. A failed write is logged; the operation that
// produced the event has already been stored.
func (o *Orchestrator) emit(ctx context.Context, eventType, seuID string, payload map[string]any) {
	_, err := logging.Emit(ctx, o.repo.DB(), logging.Event{
		EventType: eventType,
		SEUID:     seuID,
		Payload:   payload,
		EmittedAt: o.now().UTC(),
	})
	if err != nil {
		o.logger.Warn("failed to emit event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func hexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// #endregion
