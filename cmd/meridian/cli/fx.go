package cli

import (
	"errors"

	"github.com/meridian-trade/meridian/internal/fx"
)

// FXOpsCLI offers operational helpers to manage the daily rate sheets the
// quote engine converts through.
type FXOpsCLI struct {
	store fx.Store
}

// NewFXOpsCLI constructs a new helper instance.
func NewFXOpsCLI(store fx.Store) (*FXOpsCLI, error) {
	if store == nil {
		return nil, errors.New("fx ops cli: store is required")
	}
	return &FXOpsCLI{store: store}, nil
}
