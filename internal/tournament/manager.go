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

package tournament

import (
	"time"

	"github.com/google/uuid"

	"github.com/uwh-refbox/refboxd/internal/clock"
	"github.com/uwh-refbox/refboxd/internal/period"
	"github.com/uwh-refbox/refboxd/internal/syncutil"
)

// TimeoutKind tags which kind of timeout, if any, is currently running.
type TimeoutKind int

const (
	// NoTimeout means play (or a break) is proceeding normally.
	NoTimeout TimeoutKind = iota
	// TeamTimeout is a timeout called by one of the two teams.
	TeamTimeout
	// RefTimeout is a timeout called by the officials.
	RefTimeout
	// PenaltyShotTimeout suspends play for a penalty shot.
	PenaltyShotTimeout
)

func (k TimeoutKind) String() string {
	switch k {
	case TeamTimeout:
		return "TeamTimeout"
	case RefTimeout:
		return "RefTimeout"
	case PenaltyShotTimeout:
		return "PenaltyShotTimeout"
	default:
		return "NoTimeout"
	}
}

// timeoutState holds the paused game clock plus whichever timeout clock is
// presently counting, if any.
type timeoutState struct {
	kind TimeoutKind
	team Team
	clk  clock.Clock
}

// Manager is the Tournament Manager: the single authority over a game's
// clock, period, scores, and penalty/warning/foul ledger. Every mutating
// method takes the caller's `now` rather than reading the wall clock itself,
// so the whole state machine is deterministic and trivially testable.
type Manager struct {
	mu syncutil.RWMutex

	cfg Config

	tournamentID uuid.UUID
	gameNumber   uint16
	nextGame     uint16

	currentGame   uint16
	gameStartTime time.Time
	currentPeriod period.GamePeriod
	clk           clock.Clock

	timeout timeoutState

	darkScore  uint8
	lightScore uint8

	penalties map[Team][]Penalty
	warnings  []Warning
	fouls     []Foul

	nextID uint64
}

// NewManager constructs a Manager parked BetweenGames with the clock stopped
// at the configured nominal break, mirroring TournamentManager::new.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:           cfg,
		currentPeriod: period.BetweenGames,
		clk:           clock.NewStopped(cfg.NominalBreak),
		penalties:     make(map[Team][]Penalty),
	}
}

// SetTournamentID sets the tournament this manager's games belong to.
func (m *Manager) SetTournamentID(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournamentID = id
}

// SetGameNumber and SetNextGameNumber record the schedule's view of which
// game is being played and which one follows; the Manager itself only
// increments currentGame as a bare counter (see Update).
func (m *Manager) SetGameNumber(n uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameNumber = n
}

func (m *Manager) SetNextGameNumber(n uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextGame = n
}

// ClockIsRunning reports whether the game clock (not a timeout clock) is
// presently counting.
func (m *Manager) ClockIsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clk.IsRunning()
}

// CurrentPeriod returns the period play is presently in.
func (m *Manager) CurrentPeriod() period.GamePeriod {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentPeriod
}

// CurrentGame returns the 1-based count of games played so far this session.
func (m *Manager) CurrentGame() uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentGame
}

// GameStartTime returns the instant the current (or most recently started)
// game's first half began.
func (m *Manager) GameStartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gameStartTime
}

// Scores returns the current dark/light scores.
func (m *Manager) Scores() (dark, light uint8) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.darkScore, m.lightScore
}

// AddDarkScore and AddLightScore record a single goal. playerNum is accepted
// for parity with the wire protocol's score-by-player events but, like the
// original implementation, is not otherwise recorded.
func (m *Manager) AddDarkScore(playerNum uint8, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setScoresLocked(m.darkScore+1, m.lightScore, now)
}

func (m *Manager) AddLightScore(playerNum uint8, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setScoresLocked(m.darkScore, m.lightScore+1, now)
}

// SetScores overwrites both scores directly (a correction, not a goal
// event). A tied-breaking Sudden Death immediately ends once the scores
// differ.
func (m *Manager) SetScores(dark, light uint8, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setScoresLocked(dark, light, now)
}

func (m *Manager) setScoresLocked(dark, light uint8, now time.Time) {
	m.darkScore = dark
	m.lightScore = light
	if m.currentPeriod == period.SuddenDeath && dark != light {
		m.endGameLocked(now)
	}
}

// endGameLocked transitions into BetweenGames and re-anchors the break clock
// to the scheduled next-game start time (the nominal two-halves-plus-break
// schedule), falling back to the configured minimum break if the game ran
// long enough to blow past that schedule.
func (m *Manager) endGameLocked(now time.Time) {
	m.currentPeriod = period.BetweenGames

	scheduledStart := m.gameStartTime.
		Add(2 * m.cfg.HalfPlayDuration).
		Add(m.cfg.HalfTimeDuration).
		Add(m.cfg.NominalBreak)

	var gameEnd time.Time
	if instant, anchor, running := m.clk.StartInstant(); running && m.clk.State() == clock.CountingDown {
		gameEnd = instant.Add(anchor)
	} else {
		gameEnd = now
	}

	timeRemaining := m.cfg.MinimumBreak
	if scheduledStart.After(gameEnd) {
		if untilStart := scheduledStart.Sub(gameEnd); untilStart > timeRemaining {
			timeRemaining = untilStart
		}
	}

	m.clk = clock.NewStopped(timeRemaining)
	m.clk.Start(gameEnd)
}

// StartClock starts the game clock (counting down, except in Sudden Death
// where it counts up from wherever it was stopped). It is an error to call
// this while a timeout is active; the caller must end the timeout first.
func (m *Manager) StartClock(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timeout.kind != NoTimeout {
		return newError(AlreadyStopped, "cannot start the game clock while a timeout is active")
	}
	if m.currentPeriod == period.SuddenDeath {
		m.clk.StartCountingUp(now)
	} else {
		m.clk.Start(now)
	}
	return nil
}

// StopClock stops the game clock, snapshotting its current value.
func (m *Manager) StopClock(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clk.Stop(now)
}

// ClockTime returns the game clock's current reading, or false if `now`
// precedes the clock's anchor instant or lies past a countdown's zero point
// (that is, before Update has moved on to the next period).
func (m *Manager) ClockTime(now time.Time) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clk.Time(now)
}

// setPeriodAndClockTime forces the period and a stopped clock time; used by
// tests to set up a transition scenario without walking through every
// intervening period.
func (m *Manager) setPeriodAndClockTime(p period.GamePeriod, clockTime time.Duration) {
	if m.clk.IsRunning() {
		panic("can't edit period and remaining time while clock is running")
	}
	m.currentPeriod = p
	m.clk = clock.NewStopped(clockTime)
}

// setGameStart forces the recorded game-start instant; used by tests.
func (m *Manager) setGameStart(t time.Time) {
	if m.clk.IsRunning() {
		panic("can't edit game start time while clock is running")
	}
	m.gameStartTime = t
}

// Update advances period/clock state as needed for the passage of time up to
// `now`, applying every transition `now` has crossed. It is the only place
// time-driven period transitions happen (a score change in Sudden Death ends
// the game from the score setters instead) and must be called at least once
// before every clock-time read a caller cares about being current (the
// scheduler drives this on a timer; see internal/scheduler).
func (m *Manager) Update(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateLocked(now)
}

func (m *Manager) updateLocked(now time.Time) {
	if m.clk.State() != clock.CountingDown {
		return
	}
	startInstant, timeRemainingAtStart, _ := m.clk.StartInstant()

	if timeBeforeReset := timeRemainingAtStart - m.cfg.PreGameDuration; timeBeforeReset > 0 {
		if m.currentPeriod == period.BetweenGames && now.Sub(startInstant) > timeBeforeReset {
			m.setScoresLocked(0, 0, now)
		}
	}

	if now.Sub(startInstant) < timeRemainingAtStart {
		return
	}

	periodEnd := startInstant.Add(timeRemainingAtStart)

	switch m.currentPeriod {
	case period.BetweenGames:
		m.currentGame++
		m.currentPeriod = period.FirstHalf
		m.gameStartTime = periodEnd
		m.restartCountingDown(periodEnd, m.cfg.HalfPlayDuration)
	case period.FirstHalf:
		m.currentPeriod = period.HalfTime
		m.restartCountingDown(periodEnd, m.cfg.HalfTimeDuration)
	case period.HalfTime:
		m.currentPeriod = period.SecondHalf
		m.restartCountingDown(periodEnd, m.cfg.HalfPlayDuration)
	case period.SecondHalf:
		if m.darkScore != m.lightScore || (!m.cfg.OvertimeAllowed && !m.cfg.SuddenDeathAllowed) {
			m.endGameLocked(now)
		} else if m.cfg.OvertimeAllowed {
			m.currentPeriod = period.PreOvertime
			m.restartCountingDown(periodEnd, m.cfg.PreOvertimeBreak)
		} else {
			m.currentPeriod = period.PreSuddenDeath
			m.restartCountingDown(periodEnd, m.cfg.PreSuddenDeathDuration)
		}
	case period.PreOvertime:
		m.currentPeriod = period.OvertimeFirstHalf
		m.restartCountingDown(periodEnd, m.cfg.OvertimeHalfPlayDur)
	case period.OvertimeFirstHalf:
		m.currentPeriod = period.OvertimeHalfTime
		m.restartCountingDown(periodEnd, m.cfg.OvertimeHalfTimeDur)
	case period.OvertimeHalfTime:
		m.currentPeriod = period.OvertimeSecondHalf
		m.restartCountingDown(periodEnd, m.cfg.OvertimeHalfPlayDur)
	case period.OvertimeSecondHalf:
		if m.darkScore != m.lightScore || !m.cfg.SuddenDeathAllowed {
			m.endGameLocked(now)
		} else {
			m.currentPeriod = period.PreSuddenDeath
			m.restartCountingDown(periodEnd, m.cfg.PreSuddenDeathDuration)
		}
	case period.PreSuddenDeath:
		m.currentPeriod = period.SuddenDeath
		m.clk = clock.NewStopped(0)
		m.clk.StartCountingUp(periodEnd)
	case period.SuddenDeath:
		// Counts up indefinitely; only a score change ends it (setScoresLocked).
	}

	// The new period may itself already be over (shorter than the overrun);
	// keep advancing while each step moves the anchor forward.
	if next, _, _ := m.clk.StartInstant(); next.After(startInstant) {
		m.updateLocked(now)
	}
}

// restartCountingDown re-anchors the clock at `start` counting down from
// `dur`, without going through Stopped — preserving a start instant the
// caller computed (e.g. a period boundary, not `now`) so overrun time isn't
// silently dropped.
func (m *Manager) restartCountingDown(start time.Time, dur time.Duration) {
	m.clk = clock.NewStopped(dur)
	m.clk.Start(start)
}

// NextUpdateTime reports the next instant at which the displayed seconds
// field would change, or false for an unbounded period or a stopped clock.
// This is not the period deadline: the displayed value (the half-up rounded
// clock reading) flips every time the reading's sub-second remainder crosses
// zero or the half-second mark, so the driver must wake up twice a second,
// not just at period transitions.
func (m *Manager) NextUpdateTime(now time.Time) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.clk.State() != clock.CountingDown {
		return time.Time{}, false
	}
	remaining, ok := m.clk.Time(now)
	if !ok {
		return time.Time{}, false
	}
	return now.Add(nextTickDelay(remaining)), true
}

// nextTickDelay returns how long until reading's sub-second remainder next
// crosses a displayed-seconds boundary: down to the start of the current
// whole second if the remainder is at most 499_999_999ns, otherwise down to
// the 500ms mark within the second. A remainder that already sits exactly on
// one of those two grid points (measure zero in continuous time, but
// reachable with a stepped test clock) reports the next one a full 500ms
// out rather than zero, so a caller never busy-loops re-requesting "now".
func nextTickDelay(reading time.Duration) time.Duration {
	const halfSecond = 500 * time.Millisecond
	frac := reading % time.Second
	if frac < 0 {
		frac += time.Second
	}
	if m := frac % halfSecond; m != 0 {
		return m
	}
	return halfSecond
}

// StartTimeout begins a timeout of the given kind, pausing the game clock.
// It is an error to start a timeout while one is already active.
func (m *Manager) StartTimeout(kind TimeoutKind, team Team, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timeout.kind != NoTimeout {
		return newError(TimeoutAlreadyActive, "")
	}
	if kind == NoTimeout {
		return newError(InvalidPenaltyKind, "timeout kind must not be NoTimeout")
	}
	m.clk.Stop(now)
	var dur time.Duration
	if kind == TeamTimeout {
		dur = m.cfg.TeamTimeoutDuration
	}
	m.timeout = timeoutState{kind: kind, team: team, clk: clock.NewStopped(dur)}
	if kind == TeamTimeout {
		m.timeout.clk.Start(now)
	} else {
		m.timeout.clk.StartCountingUp(now)
	}
	return nil
}

// EndTimeout resumes the game clock from where it was paused. It is an
// error to call this with no timeout active.
func (m *Manager) EndTimeout(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timeout.kind == NoTimeout {
		return newError(NoActiveTimeout, "")
	}
	m.timeout.clk.Stop(now)
	m.timeout = timeoutState{}
	if m.currentPeriod == period.SuddenDeath {
		m.clk.StartCountingUp(now)
	} else {
		m.clk.Start(now)
	}
	return nil
}

// TimeoutState reports the kind of timeout currently active (NoTimeout if
// none), the team it was called for (meaningful only for TeamTimeout), and
// its clock reading: the time remaining for a TeamTimeout (counting down from
// TeamTimeoutDuration, 0 once it runs out), the elapsed time for other kinds.
func (m *Manager) TimeoutState(now time.Time) (kind TimeoutKind, team Team, elapsed time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.timeout.kind == NoTimeout {
		return NoTimeout, Dark, 0
	}
	t, _ := m.timeout.clk.Time(now)
	return m.timeout.kind, m.timeout.team, t
}

func (m *Manager) nextPenaltyID() uint64 {
	m.nextID++
	return m.nextID
}

// AddPenalty appends a new penalty to the given team's ledger, anchored to
// the manager's current period/clock-time.
func (m *Manager) AddPenalty(team Team, playerNumber uint8, kind PenaltyKind, infraction Infraction, now time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.clk.Time(now)
	if !ok {
		return 0, newError(InvalidNowValue, "now precedes the clock's anchor instant")
	}
	id := m.nextPenaltyID()
	m.penalties[team] = append(m.penalties[team], Penalty{
		ID:           id,
		PlayerNumber: playerNumber,
		Team:         team,
		Kind:         kind,
		Infraction:   infraction,
		StartPeriod:  m.currentPeriod,
		StartTime:    t,
	})
	return id, nil
}

// AddWarning appends a warning, which carries no clock time.
func (m *Manager) AddWarning(team Team, hasPlayer bool, playerNumber uint8, infraction Infraction, now time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.clk.Time(now)
	if !ok {
		return 0, newError(InvalidNowValue, "now precedes the clock's anchor instant")
	}
	id := m.nextPenaltyID()
	m.warnings = append(m.warnings, Warning{
		ID:                 id,
		Team:               team,
		HasPlayer:          hasPlayer,
		PlayerNumber:       playerNumber,
		Infraction:         infraction,
		IssuedPeriod:       m.currentPeriod,
		IssuedTimeInPeriod: t,
	})
	return id, nil
}

// AddFoul appends a foul; fouls share Warning's shape (see the Foul alias).
func (m *Manager) AddFoul(team Team, hasPlayer bool, playerNumber uint8, infraction Infraction, now time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.clk.Time(now)
	if !ok {
		return 0, newError(InvalidNowValue, "now precedes the clock's anchor instant")
	}
	id := m.nextPenaltyID()
	m.fouls = append(m.fouls, Foul{
		ID:                 id,
		Team:               team,
		HasPlayer:          hasPlayer,
		PlayerNumber:       playerNumber,
		Infraction:         infraction,
		IssuedPeriod:       m.currentPeriod,
		IssuedTimeInPeriod: t,
	})
	return id, nil
}

// DeletePenalty removes a penalty by id, preserving the remaining order.
func (m *Manager) DeletePenalty(team Team, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.penalties[team]
	for i, p := range list {
		if p.ID == id {
			m.penalties[team] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return newError(PenaltyNotFound, "")
}

// ReplacePenalty overwrites the kind and/or infraction of an existing
// penalty, leaving its id, team, and start position untouched.
func (m *Manager) ReplacePenalty(team Team, id uint64, kind PenaltyKind, infraction Infraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.penalties[team]
	for i, p := range list {
		if p.ID == id {
			list[i].Kind = kind
			list[i].Infraction = infraction
			return nil
		}
	}
	return newError(PenaltyNotFound, "")
}
