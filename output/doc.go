// SPDX-License-Identifier: EPL-2.0

// Package output plays a player through miniaudio, using
// github.com/gen2brain/malgo.
//
// The device is opened in float32 format with a period of one
// player.BlockSize, and its data callback calls the player's Render directly.
// When the backend stops the device on its own the fault callback is
// invoked, and the player reopens the device from its update goroutine.
//
//	p, err := player.New("main", player.Config{Output: output.Opener})
//
// Building the package requires cgo.
package output
