package headless

import (
	zone "github.com/lrstanley/bubblezone"

	headlessview "liveconnect/internal/ui/headless/view"
)

func (m *headlessModel) runtimeView() headlessview.Runtime {
	rt := headlessview.Runtime{
		BuildVersion: m.buildVersion,
		PageURL:      m.opts.PageURL,
		Running:      m.running,
		Connecting:   m.connecting,
		Status:       m.status,
		StatusKind:   int(m.kind),
		Handle:       m.handleSnap,
	}
	if m.progress.Active {
		rt.Loading = true
		rt.Progress = m.progress.Value
	}
	return rt
}

// View renders through the view package; zone.Scan strips the click-zone
// markers after recording their positions.
func (m *headlessModel) View() string {
	return zone.Scan(headlessview.RenderApp(&m.ui, m.runtimeView()))
}
