// Package clipboard writes text to the system clipboard.
package clipboard

import (
	"errors"

	"github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("clipboard is not supported on this system")

type Writer interface {
	WriteAll(text string) error
}

// System writes through the platform clipboard utilities (pbcopy, xclip, wl-copy, ...).
type System struct{}

func (System) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return clipboard.WriteAll(text)
}
