package input

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.design/x/hotkey"
)

// Behavior selects how key presses map to recording
type Behavior string

const (
	// BehaviorToggle starts on one press and stops on the next
	BehaviorToggle Behavior = "toggle"
	// BehaviorHold records while the key is held down
	BehaviorHold Behavior = "hold"
)

// Recorder is the part of the capture engine the hotkey drives
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// RecorderFuncs adapts a pair of functions to Recorder
type RecorderFuncs struct {
	StartFunc func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

func (r RecorderFuncs) Start(ctx context.Context) error { return r.StartFunc(ctx) }
func (r RecorderFuncs) Stop(ctx context.Context) error  { return r.StopFunc(ctx) }

// HotkeyTrigger drives a Recorder from a global hotkey
type HotkeyTrigger struct {
	mu        sync.Mutex
	hk        *hotkey.Hotkey
	behavior  Behavior
	recorder  Recorder
	recording bool
	log       zerolog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewHotkeyTrigger creates a trigger for recorder
func NewHotkeyTrigger(recorder Recorder, behavior Behavior, log zerolog.Logger) *HotkeyTrigger {
	if behavior != BehaviorHold {
		behavior = BehaviorToggle
	}
	return &HotkeyTrigger{
		behavior: behavior,
		recorder: recorder,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start registers the hotkey and begins listening
func (h *HotkeyTrigger) Start(ctx context.Context, hotkeyStr string) error {
	mods, key, err := ParseHotkey(hotkeyStr)
	if err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}

	h.hk = hotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	ctx, h.cancel = context.WithCancel(ctx)

	go func() {
		defer close(h.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-h.hk.Keydown():
				if !ok {
					return
				}
				h.keyDown(ctx)
			case _, ok := <-h.hk.Keyup():
				if !ok {
					return
				}
				h.keyUp(ctx)
			}
		}
	}()

	h.log.Info().Str("hotkey", hotkeyStr).Str("behavior", string(h.behavior)).Msg("Hotkey registered")
	return nil
}

func (h *HotkeyTrigger) keyDown(ctx context.Context) {
	h.mu.Lock()
	start := !h.recording
	if h.behavior == BehaviorHold && h.recording {
		// autorepeat while held
		h.mu.Unlock()
		return
	}
	h.recording = start
	h.mu.Unlock()

	if start {
		h.start(ctx)
	} else {
		h.stop(ctx)
	}
}

func (h *HotkeyTrigger) keyUp(ctx context.Context) {
	if h.behavior != BehaviorHold {
		return
	}
	h.mu.Lock()
	wasRecording := h.recording
	h.recording = false
	h.mu.Unlock()

	if wasRecording {
		h.stop(ctx)
	}
}

func (h *HotkeyTrigger) start(ctx context.Context) {
	if err := h.recorder.Start(ctx); err != nil {
		h.mu.Lock()
		h.recording = false
		h.mu.Unlock()
		h.log.Warn().Err(err).Msg("Failed to start recording")
	}
}

func (h *HotkeyTrigger) stop(ctx context.Context) {
	if err := h.recorder.Stop(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Failed to stop recording")
	}
}

// Stop unregisters the hotkey and stops listening
func (h *HotkeyTrigger) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.hk != nil {
		_ = h.hk.Unregister()
	}
	// Wait briefly for goroutine to exit
	if h.done != nil {
		select {
		case <-h.done:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// IsRecording returns whether the trigger believes a recording is active
func (h *HotkeyTrigger) IsRecording() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recording
}

// ParseHotkey parses a hotkey string like "ctrl+shift+space" into modifiers and key
func ParseHotkey(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, fmt.Errorf("empty hotkey string")
	}

	var mods []hotkey.Modifier
	var key hotkey.Key
	var keyFound bool

	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		default:
			if mod, ok := platformModifiers[part]; ok {
				mods = append(mods, mod)
				continue
			}
			if keyFound {
				return nil, 0, fmt.Errorf("multiple keys specified")
			}
			k, ok := keyNames[part]
			if !ok {
				return nil, 0, fmt.Errorf("unknown key: %s", part)
			}
			key = k
			keyFound = true
		}
	}

	if !keyFound {
		return nil, 0, fmt.Errorf("no key specified")
	}

	return mods, key, nil
}

var keyNames = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}
