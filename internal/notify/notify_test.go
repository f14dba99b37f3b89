package notify

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidewatch/battlecore/pkg/core"
)

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(string, []string) error       { return f.err }
func (f failingNotifier) RequestRefresh(core.Snapshot) error { return f.err }

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Fanout(nil)
	_ Notifier = (*Buffer)(nil)
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, n.Notify("s1", []string{"Fubuki fires on Akagi for 40 damage."}))
	require.NoError(t, n.RequestRefresh(core.Snapshot{
		SessionID:  "s1",
		Turn:       3,
		Combatants: []core.CombatantView{{ID: "a", Alive: true}, {ID: "b"}},
	}))

	out := buf.String()
	assert.Contains(t, out, "Fubuki fires on Akagi")
	assert.Contains(t, out, "session=s1")
	assert.Contains(t, out, "alive=1")
}

func TestFanout_JoinsErrors(t *testing.T) {
	b := NewBuffer(10)
	errA := errors.New("a down")
	errB := errors.New("b down")
	f := Fanout{failingNotifier{errA}, b, failingNotifier{errB}}

	err := f.Notify("s1", []string{"hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	// healthy sinks still receive the message
	assert.Equal(t, []string{"hello"}, b.Drain("s1"))

	assert.Error(t, f.RequestRefresh(core.Snapshot{SessionID: "s1"}))
	_, ok := b.LastRefresh("s1")
	assert.True(t, ok)

	assert.NoError(t, Fanout{b}.Notify("s1", nil))
}

func TestBuffer_KeepsMostRecent(t *testing.T) {
	b := NewBuffer(3)
	for i := range 5 {
		require.NoError(t, b.Notify("s1", []string{fmt.Sprintf("line %d", i)}))
	}
	require.NoError(t, b.Notify("s2", []string{"other"}))

	assert.Equal(t, []string{"line 2", "line 3", "line 4"}, b.Drain("s1"))
	assert.Empty(t, b.Drain("s1"))
	assert.Nil(t, b.Drain("unknown"))
	assert.Equal(t, []string{"other"}, b.Drain("s2"))
}

func TestBuffer_RefreshAndForget(t *testing.T) {
	b := NewBuffer(0)
	assert.Equal(t, DefaultBufferSize, b.size)

	require.NoError(t, b.RequestRefresh(core.Snapshot{SessionID: "s1", Turn: 3}))
	require.NoError(t, b.RequestRefresh(core.Snapshot{SessionID: "s1", Turn: 6}))
	snap, ok := b.LastRefresh("s1")
	require.True(t, ok)
	assert.Equal(t, 6, snap.Turn)

	require.NoError(t, b.Notify("s1", []string{"x"}))
	b.Forget("s1")
	_, ok = b.LastRefresh("s1")
	assert.False(t, ok)
	assert.Nil(t, b.Drain("s1"))
}
