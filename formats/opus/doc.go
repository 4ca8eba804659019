// SPDX-License-Identifier: EPL-2.0

// Package opus turns a stream of raw Opus packets into an audio.Source using
// libopus through gopkg.in/hraban/opus.v2.
//
// Opus has no self-describing raw packet format, so the caller supplies the
// packets through a PacketReader (a demuxer, a network jitter buffer, or
// SlicePackets for data already in memory) together with the decode rate
// and channel count. Lost packets, reported as empty packets, are filled in
// with packet loss concealment. Building the package requires cgo and
// libopus.
package opus
