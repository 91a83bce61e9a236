// Package pagejs holds the scripts evaluated inside the controlled page.
// Every script is a function expression taking JSON arguments. Scripts only
// read or poke the DOM and return raw observations; decisions are made in Go.
package pagejs

import _ "embed"

// Health and recovery.
var (
	//go:embed js/ready_state.js
	ReadyState string
	//go:embed js/viewport.js
	Viewport string
	//go:embed js/focus_video.js
	FocusVideo string
)

// Locators. Each takes one CSS selector.
var (
	//go:embed js/query.js
	Query string
	//go:embed js/query_shadow.js
	QueryShadow string
	//go:embed js/click.js
	Click string
	//go:embed js/click_shadow.js
	ClickShadow string
)

// Media element.
var (
	//go:embed js/media_state.js
	MediaState string
	//go:embed js/set_current_time.js
	SetCurrentTime string
	//go:embed js/play_if_paused.js
	PlayIfPaused string
	//go:embed js/click_play_control.js
	ClickPlayControl string
	//go:embed js/dispatch_space.js
	DispatchSpace string
)

// Fullscreen and presentation.
var (
	//go:embed js/fullscreen_state.js
	FullscreenState string
	//go:embed js/request_fullscreen.js
	RequestFullscreen string
	//go:embed js/clear_overlays.js
	ClearOverlays string
	//go:embed js/hide_controls.js
	HideControls string
)

//go:embed js/caption_snapshot.js
var CaptionSnapshot string

// Page level.
var (
	//go:embed js/leave_dialog.js
	LeaveDialog string
	//go:embed js/suppress_popups.js
	SuppressPopups string
	//go:embed js/video_info.js
	VideoInfo string
	//go:embed js/login_state.js
	LoginState string
	//go:embed js/debug_info.js
	DebugInfo string
)
