package config

// Color is a color value as the user writes it in the theme file: a
// named color ("Red"), an ANSI index ("10"), or an RGB hex triplet
// ("#ff0000"). It is stored verbatim; rendering is a UI concern.
type Color string

// Theme maps each named color slot to a Color, mirroring the original
// client's theme file layout (spec §4.9): one slot per UI element
// across the auth screen, the dual explorer panes, the log window, the
// transfer progress bars, and the misc status/dialog colors.
type Theme struct {
	AuthTitle       Color `toml:"auth_title"`
	AuthProtocol    Color `toml:"auth_protocol"`
	AuthAddress     Color `toml:"auth_address"`
	AuthPort        Color `toml:"auth_port"`
	AuthUsername    Color `toml:"auth_username"`
	AuthPassword    Color `toml:"auth_password"`
	AuthBookmarks   Color `toml:"auth_bookmarks"`
	AuthRecentHosts Color `toml:"auth_recent_hosts"`

	MiscTitle Color `toml:"misc_title"`
	MiscError Color `toml:"misc_error"`
	MiscInfo  Color `toml:"misc_info"`
	MiscInput Color `toml:"misc_input"`
	MiscKeys  Color `toml:"misc_keys"`
	MiscQuit  Color `toml:"misc_quit"`
	MiscSave  Color `toml:"misc_save"`
	MiscWarn  Color `toml:"misc_warn"`

	ExplorerLocalBg  Color `toml:"explorer_local_bg"`
	ExplorerLocalFg  Color `toml:"explorer_local_fg"`
	ExplorerLocalHg  Color `toml:"explorer_local_hg"`
	ExplorerRemoteBg Color `toml:"explorer_remote_bg"`
	ExplorerRemoteFg Color `toml:"explorer_remote_fg"`
	ExplorerRemoteHg Color `toml:"explorer_remote_hg"`

	LogBg     Color `toml:"log_bg"`
	LogWindow Color `toml:"log_window"`

	ProgBarFull    Color `toml:"transfer_progress_bar_full"`
	ProgBarPartial Color `toml:"transfer_progress_bar_partial"`
	TransferTitle  Color `toml:"transfer_title"`

	StatusHidden  Color `toml:"status_bar_hidden"`
	StatusSorting Color `toml:"status_bar_sorting"`
	StatusSync    Color `toml:"status_bar_sync_browsing"`
}

// DefaultTheme mirrors the original client's compiled-in default
// palette.
func DefaultTheme() Theme {
	return Theme{
		AuthTitle:       "Cyan",
		AuthProtocol:    "LightGreen",
		AuthAddress:     "LightBlue",
		AuthPort:        "LightYellow",
		AuthUsername:    "LightBlue",
		AuthPassword:    "LightRed",
		AuthBookmarks:   "LightGreen",
		AuthRecentHosts: "LightBlue",

		MiscTitle: "LightYellow",
		MiscError: "Red",
		MiscInfo:  "LightGreen",
		MiscInput: "LightYellow",
		MiscKeys:  "LightMagenta",
		MiscQuit:  "LightRed",
		MiscSave:  "LightGreen",
		MiscWarn:  "LightRed",

		ExplorerLocalBg:  "Reset",
		ExplorerLocalFg:  "LightGreen",
		ExplorerLocalHg:  "LightYellow",
		ExplorerRemoteBg: "Reset",
		ExplorerRemoteFg: "LightBlue",
		ExplorerRemoteHg: "LightYellow",

		LogBg:     "Reset",
		LogWindow: "LightWhite",

		ProgBarFull:    "LightGreen",
		ProgBarPartial: "LightYellow",
		TransferTitle:  "LightGreen",

		StatusHidden:  "LightYellow",
		StatusSorting: "LightGreen",
		StatusSync:    "LightCyan",
	}
}
