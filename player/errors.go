// SPDX-License-Identifier: EPL-2.0

package player

import "errors"

var (
	ErrClosed         = errors.New("player is closed")
	ErrAlreadyStarted = errors.New("player already started")
	ErrInvalidConfig  = errors.New("invalid player configuration")
	ErrInvalidSource  = errors.New("invalid audio source")
)
