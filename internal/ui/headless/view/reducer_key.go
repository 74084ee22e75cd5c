package view

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type KeyEffect int

const (
	KeyEffectNone KeyEffect = iota
	KeyEffectRequestQuit
	KeyEffectActivateFocused
	KeyEffectToggleConnection
	KeyEffectConfirmQuitAccept
)

const (
	confirmChoiceCount = 2
	confirmChoiceQuit  = 1
)

// ReduceKey applies a key press to state. Open dialogs take every key; the
// main screen only reports effects the model has to act on.
func ReduceKey(state State, msg tea.KeyMsg) (State, KeyEffect) {
	switch {
	case state.ErrorModalText != "":
		return reduceErrorModalKey(state, msg), KeyEffectNone
	case state.ConfirmQuit:
		return reduceQuitDialogKey(state, msg)
	}

	keys := state.Keys
	switch {
	case key.Matches(msg, keys.Quit):
		return state, KeyEffectRequestQuit
	case key.Matches(msg, keys.Toggle):
		return state, KeyEffectToggleConnection
	case key.Matches(msg, keys.Activate):
		return state, KeyEffectActivateFocused
	case key.Matches(msg, keys.NextFocus):
		state.moveFocus(1)
	case key.Matches(msg, keys.PrevFocus):
		state.moveFocus(-1)
	case key.Matches(msg, keys.Logs):
		state.ToggleLogs()
	case !state.ShowLogs:
	case key.Matches(msg, keys.Follow):
		state.FollowLogs = true
		state.LogView.GotoBottom()
	default:
		state.LogView, _ = state.LogView.Update(msg)
		state.FollowLogs = state.LogView.AtBottom()
	}
	return state, KeyEffectNone
}

func reduceErrorModalKey(state State, msg tea.KeyMsg) State {
	if msg.Type == tea.KeyEsc || key.Matches(msg, state.Keys.Activate) {
		state.ErrorModalText = ""
	}
	return state
}

// reduceQuitDialogKey also accepts y/n as shortcuts for the two buttons.
func reduceQuitDialogKey(state State, msg tea.KeyMsg) (State, KeyEffect) {
	switch {
	case msg.String() == "y":
		return state, KeyEffectConfirmQuitAccept
	case msg.Type == tea.KeyEsc, msg.String() == "n":
		state.ConfirmQuit = false
	case key.Matches(msg, state.Keys.ModalToggle):
		state.ConfirmQuitChoice = (state.ConfirmQuitChoice + 1) % confirmChoiceCount
	case key.Matches(msg, state.Keys.Activate):
		if state.ConfirmQuitChoice == confirmChoiceQuit {
			return state, KeyEffectConfirmQuitAccept
		}
		state.ConfirmQuit = false
	}
	return state, KeyEffectNone
}

func (s *State) moveFocus(delta int) {
	n := s.FocusCount()
	s.Focus = ((s.Focus+delta)%n + n) % n
}
