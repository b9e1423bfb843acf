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

// Package config loads, validates, and persists the refboxd configuration
// document: game durations, hardware wiring, the optional uwhportal upload
// target, and sound settings. A parsed document is published as an
// immutable snapshot behind an atomic.Value so readers never observe a
// torn/partial update while Reload is in progress.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"

	"github.com/uwh-refbox/refboxd/internal/sound"
	"github.com/uwh-refbox/refboxd/internal/tournament"
)

// SchemaVersion is bumped whenever Values' shape changes incompatibly
// enough that Migrate needs a new branch.
const SchemaVersion = 1

// CfgEnv overrides the config file path, mirroring the ambient convention
// of an environment variable escape hatch for the default location.
const CfgEnv = "REFBOXD_CFG"

const cfgFileName = "refboxd.toml"

// Mode selects which ruleset duration table Hardware/Durations defaults to.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeMiniCup  Mode = "minicup"
	ModeRugby    Mode = "rugby"
)

// Durations is the persisted form of tournament.Config's time fields.
type Durations struct {
	HalfPlayDuration       time.Duration `toml:"half_play_duration" validate:"gt=0"`
	HalfTimeDuration       time.Duration `toml:"half_time_duration" validate:"gt=0"`
	PreOvertimeBreak       time.Duration `toml:"pre_overtime_break" validate:"gte=0"`
	OvertimeHalfPlayDur    time.Duration `toml:"overtime_half_play_duration" validate:"gte=0"`
	OvertimeHalfTimeDur    time.Duration `toml:"overtime_half_time_duration" validate:"gte=0"`
	PreSuddenDeathDuration time.Duration `toml:"pre_sudden_death_duration" validate:"gte=0"`
	NominalBreak           time.Duration `toml:"nominal_break" validate:"gt=0"`
	MinimumBreak           time.Duration `toml:"minimum_break" validate:"gt=0"`
	PreGameDuration        time.Duration `toml:"pre_game_duration" validate:"gte=0"`

	OvertimeAllowed    bool `toml:"overtime_allowed"`
	SuddenDeathAllowed bool `toml:"sudden_death_allowed"`

	TeamTimeoutsPerHalfOrGame int           `toml:"team_timeouts_per_half_or_game" validate:"gte=0"`
	TeamTimeoutDuration       time.Duration `toml:"team_timeout_duration" validate:"gte=0"`
}

// AsTournamentConfig projects the persisted durations into the type the
// Tournament Manager actually consumes.
func (d Durations) AsTournamentConfig() tournament.Config {
	return tournament.Config{
		HalfPlayDuration:          d.HalfPlayDuration,
		HalfTimeDuration:          d.HalfTimeDuration,
		PreOvertimeBreak:          d.PreOvertimeBreak,
		OvertimeHalfPlayDur:       d.OvertimeHalfPlayDur,
		OvertimeHalfTimeDur:       d.OvertimeHalfTimeDur,
		PreSuddenDeathDuration:    d.PreSuddenDeathDuration,
		NominalBreak:              d.NominalBreak,
		MinimumBreak:              d.MinimumBreak,
		PreGameDuration:           d.PreGameDuration,
		OvertimeAllowed:           d.OvertimeAllowed,
		SuddenDeathAllowed:        d.SuddenDeathAllowed,
		TeamTimeoutsPerHalfOrGame: d.TeamTimeoutsPerHalfOrGame,
		TeamTimeoutDuration:       d.TeamTimeoutDuration,
	}
}

// Hardware describes the physical display/serial wiring for this box.
type Hardware struct {
	ScreenX      int    `toml:"screen_x" validate:"gte=0"`
	ScreenY      int    `toml:"screen_y" validate:"gte=0"`
	WhiteOnRight bool   `toml:"white_on_right"`
	SerialPort   string `toml:"serial_port"`
	BaudRate     int    `toml:"baud_rate" validate:"gte=0"`
	BinaryPort   int    `toml:"binary_port" validate:"gte=0,lte=65535"`
	JSONPort     int    `toml:"json_port" validate:"gte=0,lte=65535"`
	Brightness   uint8  `toml:"brightness" validate:"lte=3"`
}

// UWHPortal is the optional upload target for schedules/scores.
type UWHPortal struct {
	URL   string `toml:"url" validate:"omitempty,url"`
	Token string `toml:"token"`
}

// Sound is the persisted form of sound.Settings.
type Sound struct {
	SoundEnabled       bool                `toml:"sound_enabled"`
	WhistleEnabled     bool                `toml:"whistle_enabled"`
	BuzzerSound        string              `toml:"buzzer_sound"`
	WhistleVolume      string              `toml:"whistle_vol"`
	AboveWaterVolume   string              `toml:"above_water_vol"`
	UnderWaterVolume   string              `toml:"under_water_vol"`
	AutoSoundStartPlay bool                `toml:"auto_sound_start_play"`
	AutoSoundStopPlay  bool                `toml:"auto_sound_stop_play"`
	AssetsDir          string              `toml:"assets_dir"`
	Remotes            []SoundRemoteConfig `toml:"remotes,omitempty"`
}

// SoundRemoteConfig pairs a wireless remote id with its buzzer sound.
type SoundRemoteConfig struct {
	ID    uint32 `toml:"id"`
	Sound string `toml:"sound,omitempty"`
}

// AsSoundSettings converts the persisted form into sound.Settings,
// defaulting any field that fails to parse rather than rejecting the
// document, matching the original schema's best-effort migration policy.
func (s Sound) AsSoundSettings() sound.Settings {
	raw := map[string]any{
		"sound_enabled":         s.SoundEnabled,
		"whistle_enabled":       s.WhistleEnabled,
		"buzzer_sound":          s.BuzzerSound,
		"whistle_vol":           s.WhistleVolume,
		"above_water_vol":       s.AboveWaterVolume,
		"under_water_vol":       s.UnderWaterVolume,
		"auto_sound_start_play": s.AutoSoundStartPlay,
		"auto_sound_stop_play":  s.AutoSoundStopPlay,
	}
	remotes := make([]any, 0, len(s.Remotes))
	for _, r := range s.Remotes {
		remotes = append(remotes, map[string]any{
			"id":    float64(r.ID),
			"sound": r.Sound,
		})
	}
	raw["remotes"] = remotes
	return sound.MigrateSettings(raw)
}

// Values is the full persisted document.
type Values struct {
	ConfigSchema int       `toml:"config_schema"`
	Mode         Mode      `toml:"mode" validate:"oneof=standard minicup rugby"`
	HideTime     bool      `toml:"hide_time"`
	Durations    Durations `toml:"durations"`
	Hardware     Hardware  `toml:"hardware"`
	UWHPortal    UWHPortal `toml:"uwhportal"`
	Sound        Sound     `toml:"sound"`
}

// Defaults returns the out-of-the-box configuration: FINA/CMAS-style
// duration table, no hardware wiring, sound on.
func Defaults() Values {
	return Values{
		ConfigSchema: SchemaVersion,
		Mode:         ModeStandard,
		Durations: Durations{
			HalfPlayDuration:       10 * time.Minute,
			HalfTimeDuration:       3 * time.Minute,
			PreOvertimeBreak:       3 * time.Minute,
			OvertimeHalfPlayDur:    5 * time.Minute,
			OvertimeHalfTimeDur:    1 * time.Minute,
			PreSuddenDeathDuration: 1 * time.Minute,
			NominalBreak:           9 * time.Minute,
			MinimumBreak:           1 * time.Minute,
			PreGameDuration:        3 * time.Minute,
		},
		Hardware: Hardware{
			ScreenX:    256,
			ScreenY:    64,
			BaudRate:   115200,
			BinaryPort: 8000,
			JSONPort:   8001,
			Brightness: 1, // Medium
		},
		Sound: Sound{
			SoundEnabled:       true,
			WhistleEnabled:     true,
			BuzzerSound:        "Foghorn",
			WhistleVolume:      "Medium",
			AboveWaterVolume:   "Max",
			UnderWaterVolume:   "Max",
			AutoSoundStartPlay: true,
			AutoSoundStopPlay:  true,
			AssetsDir:          "sounds",
		},
	}
}

var validate = validator.New()

// Instance owns the on-disk path and the currently-loaded, validated
// Values, published behind an atomic.Value so Current() never blocks on a
// concurrent Reload.
type Instance struct {
	path    string
	current atomic.Value // Values
}

// New loads (or creates, with defaults) the config file at dir/refboxd.toml,
// honoring the CfgEnv override.
func New(dir string) (*Instance, error) {
	path := os.Getenv(CfgEnv)
	if path == "" {
		path = filepath.Join(dir, cfgFileName)
	}

	inst := &Instance{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("no config file found, writing defaults")
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("config: create directory: %w", err)
		}
		inst.current.Store(Defaults())
		if err := inst.Save(); err != nil {
			return nil, err
		}
		return inst, nil
	}

	if err := inst.Reload(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config: could not load, continuing with defaults")
	}
	return inst, nil
}

// Reload re-reads and re-validates the config file, replacing Current()
// atomically. A malformed document is never applied: the previous (or
// default) Values stay in effect and the error is returned for the caller
// to log, matching "on load, overwrite with defaults and log a warning"
// at the call site that owns the logger's context.
func (c *Instance) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", c.path, err)
	}

	var vals Values
	if err := toml.Unmarshal(data, &vals); err != nil {
		log.Warn().Err(err).Msg("config: malformed document, keeping previous values")
		if c.current.Load() == nil {
			c.current.Store(Defaults())
		}
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	if vals.ConfigSchema != SchemaVersion {
		vals = migrate(vals, data)
	}

	if err := validate.Struct(vals); err != nil {
		log.Warn().Err(err).Msg("config: validation failed, keeping previous values")
		if c.current.Load() == nil {
			c.current.Store(Defaults())
		}
		return fmt.Errorf("config: validate: %w", err)
	}

	c.current.Store(vals)
	return nil
}

// migrate best-effort upgrades an older schema document: it starts from
// defaults and layers in the old document's fields via a raw map so a
// renamed/removed field never fails the whole load, mirroring the original
// per-field extraction policy (see sound.MigrateSettings for the same
// pattern applied to the sound block).
func migrate(vals Values, raw []byte) Values {
	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return Defaults()
	}

	out := Defaults()
	if m, ok := doc["mode"].(string); ok {
		out.Mode = Mode(m)
	}
	if v, ok := doc["hide_time"].(bool); ok {
		out.HideTime = v
	}
	out.Hardware = vals.Hardware
	out.UWHPortal = vals.UWHPortal
	out.Durations = vals.Durations
	if soundTbl, ok := doc["sound"].(map[string]any); ok {
		out.Sound.SoundEnabled = boolOr(soundTbl["sound_enabled"], out.Sound.SoundEnabled)
		out.Sound.WhistleEnabled = boolOr(soundTbl["whistle_enabled"], out.Sound.WhistleEnabled)
	}
	out.ConfigSchema = SchemaVersion
	return out
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

// Current returns the presently-loaded, validated configuration. Safe for
// concurrent use; the returned value is an immutable snapshot.
func (c *Instance) Current() Values {
	v := c.current.Load()
	if v == nil {
		return Defaults()
	}
	return v.(Values) //nolint:forcetypeassert // only Values is ever stored
}

// Save validates and writes the current in-memory Values back to disk.
func (c *Instance) Save() error {
	vals := c.Current()
	vals.ConfigSchema = SchemaVersion

	if err := validate.Struct(vals); err != nil {
		return fmt.Errorf("config: refusing to save invalid values: %w", err)
	}

	data, err := toml.Marshal(&vals)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", c.path, err)
	}
	c.current.Store(vals)
	return nil
}

// Update replaces the in-memory Values and persists them, returning a
// validation error without writing if the new values are invalid.
func (c *Instance) Update(vals Values) error {
	vals.ConfigSchema = SchemaVersion
	if err := validate.Struct(vals); err != nil {
		return fmt.Errorf("config: invalid values: %w", err)
	}
	c.current.Store(vals)
	return c.Save()
}
