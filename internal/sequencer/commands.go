/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package sequencer

// CommandType enumerates worker commands.
type CommandType string

const (
	CmdToggle    CommandType = "toggle"
	CmdPlay      CommandType = "play"
	CmdPause     CommandType = "pause"
	CmdNext      CommandType = "next"
	CmdPrevious  CommandType = "previous"
	CmdStop      CommandType = "stop"
	CmdLoad      CommandType = "load"
	CmdSetVolume CommandType = "set_volume"
	CmdGetVolume CommandType = "get_volume"
	CmdShutdown  CommandType = "shutdown"
)

// VolumeReply answers a synchronous volume command.
type VolumeReply struct {
	Volume int
	Err    error
}

// Command is one instruction for the sequencer worker.
type Command struct {
	Type     CommandType `json:"type"`
	Playlist string      `json:"playlist,omitempty"`
	Shuffle  bool        `json:"shuffle,omitempty"`
	AutoPlay bool        `json:"autoplay,omitempty"`
	Volume   int         `json:"volume,omitempty"`

	// Reply, when set, receives exactly one VolumeReply. It must be
	// buffered so the worker never blocks on a gone caller.
	Reply chan VolumeReply `json:"-"`
}

func Toggle() Command   { return Command{Type: CmdToggle} }
func Play() Command     { return Command{Type: CmdPlay} }
func Pause() Command    { return Command{Type: CmdPause} }
func Next() Command     { return Command{Type: CmdNext} }
func Previous() Command { return Command{Type: CmdPrevious} }
func Stop() Command     { return Command{Type: CmdStop} }
func Shutdown() Command { return Command{Type: CmdShutdown} }

func Load(playlist string, shuffle, autoplay bool) Command {
	return Command{Type: CmdLoad, Playlist: playlist, Shuffle: shuffle, AutoPlay: autoplay}
}

func SetVolume(level int, reply chan VolumeReply) Command {
	return Command{Type: CmdSetVolume, Volume: level, Reply: reply}
}

func GetVolume(reply chan VolumeReply) Command {
	return Command{Type: CmdGetVolume, Reply: reply}
}
