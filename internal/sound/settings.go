// refboxd
// Copyright (c) 2026 The refboxd Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of refboxd.
//
// refboxd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// refboxd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with refboxd.  If not, see <http://www.gnu.org/licenses/>.

// Package sound implements the priority queue of sound requests and the
// crossfaded audio graph that plays them: at most one sound audible at a
// time, with a short linear fade between whichever was playing and whatever
// the queue head becomes.
package sound

import "fmt"

// Volume is a coarse, display-friendly loudness level rather than a raw gain
// value; AsGain converts it to the multiplier the audio graph actually uses.
type Volume int

const (
	VolumeOff Volume = iota
	VolumeLow
	VolumeMedium
	VolumeHigh
	VolumeMax
)

func (v Volume) String() string {
	switch v {
	case VolumeOff:
		return "Off"
	case VolumeLow:
		return "Low"
	case VolumeMedium:
		return "Medium"
	case VolumeHigh:
		return "High"
	case VolumeMax:
		return "Max"
	default:
		return fmt.Sprintf("Volume(%d)", int(v))
	}
}

// AsGain returns the linear sample multiplier for this volume level.
func (v Volume) AsGain() float64 {
	switch v {
	case VolumeOff:
		return 0
	case VolumeLow:
		return 0.25
	case VolumeMedium:
		return 0.4
	case VolumeHigh:
		return 0.65
	case VolumeMax:
		return 1.0
	default:
		return 0
	}
}

func parseVolume(s string) (Volume, bool) {
	switch s {
	case "Off":
		return VolumeOff, true
	case "Low":
		return VolumeLow, true
	case "Medium":
		return VolumeMedium, true
	case "High":
		return VolumeHigh, true
	case "Max":
		return VolumeMax, true
	default:
		return VolumeOff, false
	}
}

// BuzzerSound selects which sampled buzzer pattern AutoBuzzer/WiredButton/
// WirelessButton requests play.
type BuzzerSound int

const (
	BuzzerSoundFoghorn BuzzerSound = iota
	BuzzerSoundAirhorn
	BuzzerSoundWhoop
	BuzzerSoundDeDu
	BuzzerSoundTriad
)

func (b BuzzerSound) String() string {
	switch b {
	case BuzzerSoundFoghorn:
		return "Foghorn"
	case BuzzerSoundAirhorn:
		return "Airhorn"
	case BuzzerSoundWhoop:
		return "Whoop"
	case BuzzerSoundDeDu:
		return "DeDu"
	case BuzzerSoundTriad:
		return "Triad"
	default:
		return fmt.Sprintf("BuzzerSound(%d)", int(b))
	}
}

func parseBuzzerSound(s string) (BuzzerSound, bool) {
	switch s {
	case "Foghorn":
		return BuzzerSoundFoghorn, true
	case "Airhorn":
		return BuzzerSoundAirhorn, true
	case "Whoop":
		return BuzzerSoundWhoop, true
	case "DeDu":
		return BuzzerSoundDeDu, true
	case "Triad":
		return BuzzerSoundTriad, true
	default:
		return BuzzerSoundFoghorn, false
	}
}

// RemoteID identifies one paired wireless buzzer remote.
type RemoteID uint32

// RemoteInfo pairs a remote with the buzzer sound it should trigger; a nil
// Sound means "use the tournament's default buzzer_sound".
type RemoteInfo struct {
	ID    RemoteID
	Sound *BuzzerSound
}

// Settings is the live, user-editable configuration the controller
// consults every time it starts a new sound; a settings change never
// interrupts a sound already playing, only the next one started.
type Settings struct {
	SoundEnabled       bool
	WhistleEnabled     bool
	BuzzerSound        BuzzerSound
	WhistleVolume      Volume
	AboveWaterVolume   Volume
	UnderWaterVolume   Volume
	AutoSoundStartPlay bool
	AutoSoundStopPlay  bool
	Remotes            []RemoteInfo
}

// DefaultSettings mirrors the documented field defaults: sound and whistle
// both on, medium whistle volume, both start/stop auto-sounds enabled.
func DefaultSettings() Settings {
	return Settings{
		SoundEnabled:       true,
		WhistleEnabled:     true,
		BuzzerSound:        BuzzerSoundFoghorn,
		WhistleVolume:      VolumeMedium,
		AboveWaterVolume:   VolumeMax,
		UnderWaterVolume:   VolumeMax,
		AutoSoundStartPlay: true,
		AutoSoundStopPlay:  true,
	}
}

// MigrateSettings best-effort extracts each field from a previous schema
// version's raw document: present and correctly typed fields are kept,
// anything missing or malformed falls back to the default rather than
// failing the whole load.
func MigrateSettings(old map[string]any) Settings {
	out := DefaultSettings()

	if v, ok := old["sound_enabled"].(bool); ok {
		out.SoundEnabled = v
	}
	if v, ok := old["whistle_enabled"].(bool); ok {
		out.WhistleEnabled = v
	}
	if v, ok := old["buzzer_sound"].(string); ok {
		if b, ok := parseBuzzerSound(v); ok {
			out.BuzzerSound = b
		}
	}
	if v, ok := old["whistle_vol"].(string); ok {
		if vol, ok := parseVolume(v); ok {
			out.WhistleVolume = vol
		}
	}
	if v, ok := old["above_water_vol"].(string); ok {
		if vol, ok := parseVolume(v); ok {
			out.AboveWaterVolume = vol
		}
	}
	if v, ok := old["under_water_vol"].(string); ok {
		if vol, ok := parseVolume(v); ok {
			out.UnderWaterVolume = vol
		}
	}
	if v, ok := old["auto_sound_start_play"].(bool); ok {
		out.AutoSoundStartPlay = v
	}
	if v, ok := old["auto_sound_stop_play"].(bool); ok {
		out.AutoSoundStopPlay = v
	}
	if raw, ok := old["remotes"].([]any); ok {
		remotes := make([]RemoteInfo, 0, len(raw))
		for _, r := range raw {
			tbl, ok := r.(map[string]any)
			if !ok {
				continue
			}
			idF, ok := tbl["id"].(float64)
			if !ok {
				continue
			}
			info := RemoteInfo{ID: RemoteID(idF)}
			if s, ok := tbl["sound"].(string); ok {
				if b, ok := parseBuzzerSound(s); ok {
					info.Sound = &b
				}
			}
			remotes = append(remotes, info)
		}
		out.Remotes = remotes
	}

	return out
}
