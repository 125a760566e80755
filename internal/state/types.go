package state

import (
	"time"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/mode"
)

// #region cube-summary
// CubeSummary is the index row kept beside each stored cube.
type CubeSummary struct {
	SEUID         string
	CognitiveMode mode.Mode
	ModeScore     float64
	InputHash     string
	Stale         bool // a raw was replaced after this cube was built
	CreatedAt     time.Time
}
// #endregion cube-summary
