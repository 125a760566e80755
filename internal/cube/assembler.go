// Package cube assembles the composite per-SEU record from eight channel
// metas and their raw descriptors.
package cube

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/axis"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region assembler

// Source provides the stored metas and raws a cube is built from.
type Source interface {
	GetMeta(ctx context.Context, seuID string, ch seu.ChannelID) (seu.ChannelMeta, error)
	GetRaw(ctx context.Context, seuID string, ch seu.ChannelID) (seu.RawRecord, error)
}

// Assembler reads a consistent set of inputs from a Source and synthesizes.
type Assembler struct {
	src Source
	now func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates an Assembler over src.
func NewAssembler(src Source, opts ...Option) *Assembler {
	a := &Assembler{src: src, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build loads all eight metas and raws for seuID and synthesizes a cube.
// The first absent meta fails the build with seu.ErrMissingMeta; nothing is
// synthesized from a partial set.
func (a *Assembler) Build(ctx context.Context, seuID string) (Cube, error) {
	metas := make(seu.MetaSet, len(seu.Channels))
	for _, ch := range seu.Channels {
		m, err := a.src.GetMeta(ctx, seuID, ch)
		if errors.Is(err, seu.ErrNotFound) {
			return Cube{}, seu.MissingMeta(seuID, ch)
		}
		if err != nil {
			return Cube{}, fmt.Errorf("load meta %s: %w", ch, err)
		}
		metas[ch] = m
	}

	raws := make(map[seu.ChannelID]seu.RawRecord, len(seu.Channels))
	for _, ch := range seu.Channels {
		r, err := a.src.GetRaw(ctx, seuID, ch)
		if errors.Is(err, seu.ErrNotFound) {
			return Cube{}, seu.MissingRaw(seuID, ch)
		}
		if err != nil {
			return Cube{}, fmt.Errorf("load raw %s: %w", ch, err)
		}
		if h := metas[ch].Evidence("raw_hash"); h != "" && h != r.RawHash {
			return Cube{}, fmt.Errorf("%w: %s meta was derived from another raw (seu %s)", seu.ErrInputsChanged, ch, seuID)
		}
		raws[ch] = r
	}

	return Synthesize(seuID, metas, raws, a.now().UTC()), nil
}

// #endregion assembler

// #region synthesize

// Synthesize runs the T/C/I/E axes and the mode classifier over a complete
// input set. It is pure: equal inputs and clock give an equal cube.
func Synthesize(seuID string, metas seu.MetaSet, raws map[seu.ChannelID]seu.RawRecord, now time.Time) Cube {
	texts := make(seu.RawTexts, len(raws))
	rawIDs := make(map[seu.ChannelID]string, len(raws))
	for ch, r := range raws {
		texts[ch] = r.RawRef
		if r.RawID != "" {
			rawIDs[ch] = r.RawID
		}
	}

	t := axis.SynthesizeTemporal(raws[seu.TimelineChannel])
	c := axis.SynthesizeContext(metas, texts)
	i := axis.SynthesizeIntent(metas, texts)
	e := axis.SynthesizeEmotion(metas, texts)
	m := mode.Classify(mode.InputFrom(metas, i.Intensity, e.Valence))

	snapshots := make(map[seu.ChannelID]ChannelSnapshot, len(seu.Channels))
	for _, ch := range seu.Channels {
		meta := metas[ch]
		snapshots[ch] = ChannelSnapshot{
			Activation: meta.Activation,
			Confidence: meta.Confidence,
			SignalType: meta.SignalType,
		}
	}

	return Cube{
		SEUID:        seuID,
		T:            t,
		C:            c,
		I:            i,
		E:            e,
		M:            m,
		ChannelMetas: snapshots,
		PAI: Stamp{
			CreatedAt:      now,
			PipelineStatus: PipelineStatusWritten,
			CognitiveMode:  m.CognitiveMode,
			ModeLabel:      m.ModeLabel,
			ModeLabelKo:    m.ModeLabelKo,
		},
		InputHash: InputHash(metas, raws),
		RawIDs:    rawIDs,
	}
}

// InputHash is the hex SHA-256 over the ordered metas, raw texts and the
// timeline channel's time bounds.
func InputHash(metas seu.MetaSet, raws map[seu.ChannelID]seu.RawRecord) string {
	h := sha256.New()
	for _, ch := range seu.Channels {
		b, _ := json.Marshal(metas[ch])
		h.Write(b)
		h.Write([]byte{0})
		h.Write([]byte(raws[ch].RawRef))
		h.Write([]byte{0})
	}
	tl := raws[seu.TimelineChannel]
	h.Write([]byte(tl.TsStart + "\x00" + tl.TsEnd + "\x00"))
	if d, ok := tl.DurationMs(); ok {
		h.Write([]byte(strconv.FormatInt(d, 10)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// #endregion synthesize
