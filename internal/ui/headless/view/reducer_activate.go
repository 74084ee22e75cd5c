package view

type ActivateEffect int

const (
	ActivateEffectNone ActivateEffect = iota
	ActivateEffectConnect
	ActivateEffectDisconnect
	ActivateEffectRequestQuit
	ActivateEffectDebugLevelChanged
)

func ReduceActivate(state State, running bool, connecting bool) (State, ActivateEffect) {
	switch state.Focus {
	case state.ConnectIndex():
		return state, ReduceToggle(running, connecting)
	case state.LogsIndex():
		state.ToggleLogs()
		return state, ActivateEffectNone
	case state.QuitIndex():
		return state, ActivateEffectRequestQuit
	case state.LogsDebugIndex():
		state.DebugOn = !state.DebugOn
		return state, ActivateEffectDebugLevelChanged
	default:
		return state, ActivateEffectNone
	}
}

// ReduceToggle picks the connect toggle's action. A connection attempt in
// flight can still be cancelled.
func ReduceToggle(running bool, connecting bool) ActivateEffect {
	if running || connecting {
		return ActivateEffectDisconnect
	}
	return ActivateEffectConnect
}
