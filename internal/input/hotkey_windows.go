//go:build windows

package input

import "golang.design/x/hotkey"

var platformModifiers = map[string]hotkey.Modifier{
	"alt":   hotkey.ModAlt,
	"win":   hotkey.ModWin,
	"super": hotkey.ModWin,
	"meta":  hotkey.ModWin,
}
