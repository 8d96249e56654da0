package adb

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner captures adb invocations and replies from a table
type recordingRunner struct {
	calls   [][]string
	replies map[string]string
	errs    map[string]error
}

func (r *recordingRunner) run(_ time.Duration, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	key := strings.Join(args, " ")
	if err, ok := r.errs[key]; ok {
		return nil, err
	}
	return []byte(r.replies[key]), nil
}

func newTestController(r *recordingRunner) *Controller {
	return NewController("adb", "emulator-5554", nil).WithRunner(r.run)
}

func TestTapUsesTimedSwipe(t *testing.T) {
	r := &recordingRunner{}
	require.NoError(t, newTestController(r).Tap(300, 1800, 120))

	require.Len(t, r.calls, 1)
	assert.Equal(t, []string{"adb", "-s", "emulator-5554", "shell", "input swipe 300 1800 300 1800 120"}, r.calls[0])
}

func TestTapWithoutDuration(t *testing.T) {
	r := &recordingRunner{}
	require.NoError(t, newTestController(r).Tap(5, 6, 0))
	assert.Equal(t, "input tap 5 6", r.calls[0][4])
}

func TestSwipeAndBack(t *testing.T) {
	r := &recordingRunner{}
	c := newTestController(r)
	require.NoError(t, c.Swipe(540, 1800, 540, 1200, 250))
	require.NoError(t, c.Back())

	assert.Equal(t, "input swipe 540 1800 540 1200 250", r.calls[0][4])
	assert.Equal(t, "input keyevent KEYCODE_BACK", r.calls[1][4])
}

func TestScreencapUsesExecOut(t *testing.T) {
	r := &recordingRunner{replies: map[string]string{"-s emulator-5554 exec-out screencap -p": "PNGDATA"}}
	data, err := newTestController(r).Screencap()
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
}

func TestShellError(t *testing.T) {
	r := &recordingRunner{errs: map[string]error{"-s emulator-5554 shell input keyevent KEYCODE_BACK": errors.New("closed")}}
	err := newTestController(r).Back()
	assert.Error(t, err)
}

func TestParseWindowSize(t *testing.T) {
	w, h, err := parseWindowSize("Physical size: 1080x2400")
	require.NoError(t, err)
	assert.Equal(t, 1080, w)
	assert.Equal(t, 2400, h)

	w, h, err = parseWindowSize("Physical size: 1080x2400\nOverride size: 720x1600")
	require.NoError(t, err)
	assert.Equal(t, 720, w)
	assert.Equal(t, 1600, h)

	_, _, err = parseWindowSize("garbage")
	assert.Error(t, err)
}

func TestParseDensity(t *testing.T) {
	d, err := parseDensity("Physical density: 440")
	require.NoError(t, err)
	assert.Equal(t, 440, d)

	d, err = parseDensity("Physical density: 440\nOverride density: 320")
	require.NoError(t, err)
	assert.Equal(t, 320, d)

	_, err = parseDensity("")
	assert.Error(t, err)
}

func TestStateUnauthorized(t *testing.T) {
	r := &recordingRunner{errs: map[string]error{
		"-s emulator-5554 get-state": errors.New("exit status 1, output: error: device unauthorized."),
	}}
	state, err := newTestController(r).State()
	require.NoError(t, err)
	assert.Equal(t, "unauthorized", state)
}

func TestConnectNetworkDevice(t *testing.T) {
	r := &recordingRunner{replies: map[string]string{"connect 127.0.0.1:5555": "connected to 127.0.0.1:5555"}}
	c := NewController("adb", "127.0.0.1:5555", nil).WithRunner(r.run)

	require.NoError(t, c.Connect())
	assert.True(t, c.IsConnected())
	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
}

func TestConnectUnexpectedOutput(t *testing.T) {
	r := &recordingRunner{replies: map[string]string{"connect 127.0.0.1:5555": "failed to connect"}}
	c := NewController("adb", "127.0.0.1:5555", nil).WithRunner(r.run)
	assert.Error(t, c.Connect())
}

func TestResolveDevice(t *testing.T) {
	r := &recordingRunner{replies: map[string]string{
		"devices": "List of devices attached\nemulator-5554\tdevice\nR58M\tunauthorized\n",
	}}
	serial, err := ResolveDevice("adb", "", r.run)
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", serial)

	serial, err = ResolveDevice("adb", "configured", r.run)
	require.NoError(t, err)
	assert.Equal(t, "configured", serial)
}

func TestResolveDeviceNone(t *testing.T) {
	r := &recordingRunner{replies: map[string]string{"devices": "List of devices attached\n"}}
	_, err := ResolveDevice("adb", "", r.run)
	assert.Error(t, err)
}
