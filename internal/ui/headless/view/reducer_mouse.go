package view

import tea "github.com/charmbracelet/bubbletea"

type MouseEffect int

const (
	MouseEffectNone MouseEffect = iota
	MouseEffectActivateFocused
	MouseEffectConfirmQuitAccept
)

func ReduceMouse(state State, msg tea.MouseMsg) (State, tea.Cmd, MouseEffect) {
	released := msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft

	if state.ErrorModalText != "" {
		if released && inZone(zoneDialogErrorClose, msg) {
			state.ErrorModalText = ""
		}
		return state, nil, MouseEffectNone
	}

	if state.ConfirmQuit {
		if !released {
			return state, nil, MouseEffectNone
		}
		switch {
		case inZone(zoneDialogQuitAccept, msg):
			state.ConfirmQuitChoice = confirmChoiceQuit
			return state, nil, MouseEffectConfirmQuitAccept
		case inZone(zoneDialogQuitCancel, msg):
			state.ConfirmQuit = false
		}
		return state, nil, MouseEffectNone
	}

	state.HoverZone = ""
	for id, index := range controlZones {
		if index >= state.FocusCount() || !inZone(id, msg) {
			continue
		}
		state.HoverZone = id
		if released {
			state.Focus = index
			return state, nil, MouseEffectActivateFocused
		}
	}

	if !state.ShowLogs {
		return state, nil, MouseEffectNone
	}
	var cmd tea.Cmd
	state.LogView, cmd = state.LogView.Update(msg)
	state.FollowLogs = state.LogView.AtBottom()
	return state, cmd, MouseEffectNone
}
