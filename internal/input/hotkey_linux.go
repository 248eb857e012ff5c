//go:build linux

package input

import "golang.design/x/hotkey"

// X11 has no named alt or super modifiers; they sit on Mod1 and Mod4
var platformModifiers = map[string]hotkey.Modifier{
	"alt":    hotkey.Mod1,
	"option": hotkey.Mod1,
	"super":  hotkey.Mod4,
	"win":    hotkey.Mod4,
	"meta":   hotkey.Mod4,
	"cmd":    hotkey.Mod4,
}
