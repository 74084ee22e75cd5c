package view

import (
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
)

const (
	zoneConnect   = "overview-connect"
	zoneLogs      = "overview-logs"
	zoneQuit      = "overview-quit"
	zoneLogsDebug = "overview-logs-debug"

	zoneDialogQuitCancel = "dialog-quit-cancel"
	zoneDialogQuitAccept = "dialog-quit-accept"
	zoneDialogErrorClose = "dialog-error-close"
)

var controlZones = map[string]int{
	zoneConnect:   connectControlIndex,
	zoneLogs:      logsControlIndex,
	zoneQuit:      quitControlIndex,
	zoneLogsDebug: logsDebugControlIndex,
}

func inZone(id string, msg tea.MouseMsg) bool {
	info := zone.Get(id)
	return info != nil && info.InBounds(msg)
}
