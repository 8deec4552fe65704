package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/guessduel/models"
)

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// Machine is a directed graph of allowed status transitions. A status with no
// outgoing edge is terminal.
type Machine[S comparable] struct {
	name        string
	transitions map[S]map[S]bool // fromState -> toState
	mutex       sync.RWMutex
}

func NewMachine[S comparable](name string) *Machine[S] {
	return &Machine[S]{
		name:        name,
		transitions: make(map[S]map[S]bool),
	}
}

// AddTransition allows from -> each of to.
func (m *Machine[S]) AddTransition(from S, to ...S) *Machine[S] {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[S]bool)
	}
	for _, t := range to {
		m.transitions[from][t] = true
	}
	return m
}

// Can reports whether from -> to is allowed.
func (m *Machine[S]) Can(from, to S) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.transitions[from][to]
}

// Check returns ErrTransitionNotAllowed, annotated, when from -> to is not
// an edge.
func (m *Machine[S]) Check(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s %v -> %v", ErrTransitionNotAllowed, m.name, from, to)
}

// Terminal reports whether s has no way out.
func (m *Machine[S]) Terminal(s S) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.transitions[s]) == 0
}

// NoGame stands for a room that has not started its game yet.
const NoGame models.GameStatus = ""

// Room: OPEN -> FULL -> COMPLETED.
var Room = NewMachine[models.RoomStatus]("room").
	AddTransition(models.RoomOpen, models.RoomFull).
	AddTransition(models.RoomFull, models.RoomCompleted)

// Game: {no game} -> IN_PROGRESS -> COMPLETED.
var Game = NewMachine[models.GameStatus]("game").
	AddTransition(NoGame, models.GameInProgress).
	AddTransition(models.GameInProgress, models.GameCompleted)
