package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func trig(id string, wd int, offset time.Duration) Trigger {
	return Trigger{Key: Key{TaskID: id, Weekday: wd}, At: base.Add(offset)}
}

func TestRegisterReplacesAllTriggers(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("a", trig("a", 0, time.Hour), trig("a", 2, 2*time.Hour))
	require.Equal(t, 2, r.Len())

	r.Register("a", trig("a", NoWeekday, 3*time.Hour))
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, NoWeekday, snap[0].Key.Weekday)
}

func TestRegisterIgnoresForeignAndZeroTriggers(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("a", trig("b", NoWeekday, time.Hour), Trigger{Key: Key{TaskID: "a", Weekday: NoWeekday}})
	assert.Equal(t, 0, r.Len())
}

func TestCancel(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("a", trig("a", 0, time.Hour), trig("a", 1, time.Hour))
	r.Register("b", trig("b", NoWeekday, time.Hour))

	assert.True(t, r.Cancel("a"))
	assert.False(t, r.Cancel("a"))
	assert.False(t, r.Cancel("missing"))
	assert.Equal(t, 1, r.Len())
}

func TestDueIsOrderedAndNonDestructive(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("b", trig("b", NoWeekday, -time.Minute))
	r.Register("a", trig("a", 3, -time.Minute), trig("a", 1, -2*time.Minute), trig("a", 5, time.Minute))
	r.Register("c", trig("c", NoWeekday, 0))

	due := r.Due(base)
	require.Len(t, due, 4)
	assert.Equal(t, Key{"a", 1}, due[0].Key)
	assert.Equal(t, Key{"a", 3}, due[1].Key)
	assert.Equal(t, Key{"b", NoWeekday}, due[2].Key)
	assert.Equal(t, Key{"c", NoWeekday}, due[3].Key)

	assert.Len(t, r.Due(base), 4)
}

func TestNext(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register("a", trig("a", 0, 2*time.Hour), trig("a", 4, time.Hour))
	at, ok := r.Next("a")
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), at)

	_, ok = r.Next("zzz")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			for j := 0; j < 100; j++ {
				r.Register(id, trig(id, NoWeekday, time.Duration(j)*time.Second))
				_ = r.Due(base.Add(time.Minute))
				_ = r.Snapshot()
				if j%10 == 0 {
					r.Cancel(id)
				}
			}
		}(i)
	}
	wg.Wait()
	r.Clear()
	assert.Equal(t, 0, r.Len())
}
