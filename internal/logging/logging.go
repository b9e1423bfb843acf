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

// Package logging wires zerolog to a rotating file sink (and optionally
// stderr), the ambient logging setup every command shares.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Init points the global logger at a rotating file in dir, plus stderr
// when console is true (interactive use); headless deployments pass false.
func Init(dir string, console bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	writers := []io.Writer{&lumberjack.Logger{
		Filename:   filepath.Join(dir, "refboxd.log"),
		MaxSize:    10,
		MaxBackups: 3,
	}}
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	log.Logger = log.Output(io.MultiWriter(writers...)).With().Timestamp().Caller().Logger()
	return nil
}
