//go:build !windows

package outlook

import (
	"errors"

	"github.com/dgower/olbridge/internal/mapi"
)

// ErrUnsupportedPlatform is returned by Connect on platforms without the
// COM automation surface.
var ErrUnsupportedPlatform = errors.New("the live automation backend " +
	"requires windows; use the sim backend elsewhere")

// Connect is the non-windows placeholder for the COM connector.
func Connect() (mapi.Store, error) {
	return nil, ErrUnsupportedPlatform
}
