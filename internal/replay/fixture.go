package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/cube"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Units           []FixtureUnit           `json:"units"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureUnit is one SEU: its time bounds and the raw text per channel.
type FixtureUnit struct {
	SEUID      string            `json:"seu_id"`
	TsStart    string            `json:"ts_start"`
	TsEnd      string            `json:"ts_end"`
	DurationMs *int64            `json:"duration_ms,omitempty"`
	Channels   map[string]string `json:"channels"`
}

// FixtureExpectedResult captures the expected outcome per unit.
type FixtureExpectedResult struct {
	SEUID  string `json:"seu_id"`
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
}

// FixtureConfig holds the eval thresholds for a replay run. Zero values
// select the defaults.
type FixtureConfig struct {
	ScoreTolerance    float64 `json:"score_tolerance,omitempty"`
	MinMeanConfidence float64 `json:"min_mean_confidence,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToUnit converts a FixtureUnit to raw records keyed by channel. Channel keys
// outside CH1..CH8 are an error.
func (fu *FixtureUnit) ToUnit() (Unit, error) {
	u := Unit{SEUID: fu.SEUID, Raws: make(map[seu.ChannelID]seu.RawRecord, len(fu.Channels))}
	for key, text := range fu.Channels {
		ch, err := seu.ParseChannel(key)
		if err != nil {
			return Unit{}, fmt.Errorf("unit %s: %w", fu.SEUID, err)
		}
		sum := sha256.Sum256([]byte(text))
		r := seu.RawRecord{
			RawID:     fmt.Sprintf("replay_%s_%s", fu.SEUID, ch),
			SEUID:     fu.SEUID,
			ChannelID: ch,
			TsStart:   fu.TsStart,
			TsEnd:     fu.TsEnd,
			RawRef:    text,
			RawHash:   hex.EncodeToString(sum[:]),
		}
		if fu.DurationMs != nil {
			r.Extra = map[string]any{"duration_ms": *fu.DurationMs}
		}
		u.Raws[ch] = r
	}
	return u, nil
}

// ToUnits converts every fixture unit.
func (f *Fixture) ToUnits() ([]Unit, error) {
	units := make([]Unit, len(f.Units))
	for i := range f.Units {
		u, err := f.Units[i].ToUnit()
		if err != nil {
			return nil, err
		}
		units[i] = u
	}
	return units, nil
}

// ToReplayConfig converts a FixtureConfig to a ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	config := DefaultReplayConfig()
	if fc.ScoreTolerance > 0 {
		config.EvalConfig.ScoreTolerance = fc.ScoreTolerance
	}
	if fc.MinMeanConfidence > 0 {
		config.EvalConfig.MinMeanConfidence = fc.MinMeanConfidence
	}
	return config
}

// #endregion fixture-loader

// #region export

// ExportSource is the read side of the store used to export fixtures.
type ExportSource interface {
	ListUnitIDs(ctx context.Context) ([]string, error)
	GetUnit(ctx context.Context, seuID string) (seu.Unit, error)
	GetRaw(ctx context.Context, seuID string, ch seu.ChannelID) (seu.RawRecord, error)
	GetCube(ctx context.Context, seuID string) (cube.Cube, error)
}

// Export dumps every stored unit with its current raw texts. Units with a
// stored cube get an expected result carrying the stored mode.
func Export(ctx context.Context, src ExportSource, description string) (*Fixture, error) {
	ids, err := src.ListUnitIDs(ctx)
	if err != nil {
		return nil, err
	}

	f := &Fixture{Description: description, Units: []FixtureUnit{}, ExpectedResults: []FixtureExpectedResult{}}
	for _, id := range ids {
		unit, err := src.GetUnit(ctx, id)
		if err != nil {
			return nil, err
		}
		fu := FixtureUnit{SEUID: id, TsStart: unit.TsStart, TsEnd: unit.TsEnd, Channels: map[string]string{}}

		for _, ch := range seu.Channels {
			r, err := src.GetRaw(ctx, id, ch)
			if errors.Is(err, seu.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			fu.Channels[string(ch)] = r.RawRef
			if ch == seu.TimelineChannel {
				fu.TsStart, fu.TsEnd = r.TsStart, r.TsEnd
				if d, ok := r.DurationMs(); ok {
					fu.DurationMs = &d
				}
			}
		}
		f.Units = append(f.Units, fu)

		c, err := src.GetCube(ctx, id)
		switch {
		case err == nil:
			f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
				SEUID:  id,
				Action: ActionClassified,
				Mode:   string(c.M.CognitiveMode),
			})
		case !errors.Is(err, seu.ErrNotFound):
			return nil, err
		}
	}
	return f, nil
}

// #endregion export
