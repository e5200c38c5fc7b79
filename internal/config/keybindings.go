package config

import "sort"

// Modifier is one of the three key modifiers the original client
// tracks; TOML output lists them in alphabetical order.
type Modifier string

const (
	ModAlt   Modifier = "Alt"
	ModCtrl  Modifier = "Ctrl"
	ModShift Modifier = "Shift"
)

// KeyBinding is one named key combination, serialized as a single TOML
// table per spec §6: `{ key = "...", modifiers = [...] }`, with
// modifiers omitted entirely when empty.
type KeyBinding struct {
	Key       string     `toml:"key"`
	Modifiers []Modifier `toml:"modifiers,omitempty"`
}

// NewKeyBinding builds a KeyBinding with modifiers canonicalized into
// alphabetical order regardless of the order given.
func NewKeyBinding(key string, mods ...Modifier) KeyBinding {
	sorted := append([]Modifier(nil), mods...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return KeyBinding{Key: key, Modifiers: sorted}
}

// BookmarksKeys are the bindings specific to the bookmarks list.
type BookmarksKeys struct {
	Load   KeyBinding `toml:"load"`
	Delete KeyBinding `toml:"delete"`
}

// RecentsKeys are the bindings specific to the recents list.
type RecentsKeys struct {
	Load   KeyBinding `toml:"load"`
	Delete KeyBinding `toml:"delete"`
}

// AuthKeys are the bindings specific to the connection/auth screen.
type AuthKeys struct {
	Bookmarks    BookmarksKeys `toml:"bookmarks"`
	Recents      RecentsKeys   `toml:"recents"`
	Help         KeyBinding    `toml:"help"`
	EnterSetup   KeyBinding    `toml:"enter_setup"`
	SwitchTab    KeyBinding    `toml:"switch_tab"`
	Right        KeyBinding    `toml:"right"`
	Left         KeyBinding    `toml:"left"`
	SaveBookmark KeyBinding    `toml:"save_bookmark"`
}

// KeyBindings mirrors the original client's KeyBindings data model
// (spec §4.9), serialized as a nested `keys` table.
type KeyBindings struct {
	Auth        AuthKeys   `toml:"auth"`
	Close       KeyBinding `toml:"close"`
	Up          KeyBinding `toml:"up"`
	Down        KeyBinding `toml:"down"`
	Left        KeyBinding `toml:"left"`
	Right       KeyBinding `toml:"right"`
	Confirm     KeyBinding `toml:"confirm"`
	Yes         KeyBinding `toml:"yes"`
	No          KeyBinding `toml:"no"`
	PageDown    KeyBinding `toml:"page_down"`
	PageUp      KeyBinding `toml:"page_up"`
	Begin       KeyBinding `toml:"begin"`
	End         KeyBinding `toml:"end"`
	SwitchLeft  KeyBinding `toml:"switch_left"`
	SwitchRight KeyBinding `toml:"switch_right"`
	SwitchDown  KeyBinding `toml:"switch_down"`
	SwitchUp    KeyBinding `toml:"switch_up"`
}

// DefaultKeyBindings mirrors the original client's compiled-in default
// bindings.
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Close:       NewKeyBinding("Esc"),
		Up:          NewKeyBinding("Up"),
		Down:        NewKeyBinding("Down"),
		Left:        NewKeyBinding("Left"),
		Right:       NewKeyBinding("Right"),
		Yes:         NewKeyBinding("y"),
		No:          NewKeyBinding("n"),
		Confirm:     NewKeyBinding("Enter"),
		PageDown:    NewKeyBinding("PageDown"),
		PageUp:      NewKeyBinding("PageUp"),
		Begin:       NewKeyBinding("Home"),
		End:         NewKeyBinding("End"),
		SwitchDown:  NewKeyBinding("Tab"),
		SwitchUp:    NewKeyBinding("Tab", ModShift),
		SwitchLeft:  NewKeyBinding("Left"),
		SwitchRight: NewKeyBinding("Right"),
		Auth: AuthKeys{
			Bookmarks: BookmarksKeys{
				Load:   NewKeyBinding("Enter"),
				Delete: NewKeyBinding("Delete"),
			},
			Recents: RecentsKeys{
				Load:   NewKeyBinding("Enter"),
				Delete: NewKeyBinding("Delete"),
			},
			Help:         NewKeyBinding("h", ModCtrl),
			EnterSetup:   NewKeyBinding("c", ModCtrl),
			SwitchTab:    NewKeyBinding("Tab"),
			Right:        NewKeyBinding("Right"),
			Left:         NewKeyBinding("Left"),
			SaveBookmark: NewKeyBinding("s", ModCtrl),
		},
	}
}
