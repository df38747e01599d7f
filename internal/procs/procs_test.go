package procs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
	sourcetest "github.com/GustavoChierici/system-dashboard/internal/source/testing"
)

func TestShare(t *testing.T) {
	tests := []struct {
		name   string
		entry  model.ProcessEntry
		hz     float64
		uptime float64
		want   float64
	}{
		{
			name:   "half busy since boot",
			entry:  model.ProcessEntry{UTime: 3000, STime: 2000, StartTime: 0},
			hz:     100,
			uptime: 100,
			want:   50,
		},
		{
			name:   "started later",
			entry:  model.ProcessEntry{UTime: 500, STime: 500, StartTime: 8000},
			hz:     100,
			uptime: 100,
			// 10s of CPU over 20s alive
			want: 50,
		},
		{
			name:   "user and system are both counted",
			entry:  model.ProcessEntry{UTime: 100, STime: 0, StartTime: 0},
			hz:     100,
			uptime: 10,
			want:   10,
		},
		{
			name:   "system time alone",
			entry:  model.ProcessEntry{UTime: 0, STime: 100, StartTime: 0},
			hz:     100,
			uptime: 10,
			want:   10,
		},
		{
			name:   "started after the uptime reading",
			entry:  model.ProcessEntry{UTime: 10, StartTime: 20000},
			hz:     100,
			uptime: 100,
			want:   0,
		},
		{
			name:   "zero clock rate",
			entry:  model.ProcessEntry{UTime: 10},
			hz:     0,
			uptime: 100,
			want:   0,
		},
		{
			name:   "multithreaded above 100",
			entry:  model.ProcessEntry{UTime: 3000, STime: 1000},
			hz:     100,
			uptime: 20,
			want:   200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Share(tt.entry, tt.hz, tt.uptime), 1e-9)
		})
	}
}

func TestRankStableDescending(t *testing.T) {
	// uptime 100s, hz 100: usage = (utime+stime)/100 percent
	entries := []model.ProcessEntry{
		{PID: 1, Name: "low", UTime: 500},
		{PID: 2, Name: "first-high", UTime: 2000},
		{PID: 3, Name: "second-high", UTime: 1000, STime: 1000},
	}

	got := Rank(entries, 100, 100)
	require.Len(t, got, 3)
	assert.Equal(t, []model.ProcessRecord{
		{PID: 2, Name: "first-high", CPU: 20},
		{PID: 3, Name: "second-high", CPU: 20},
		{PID: 1, Name: "low", CPU: 5},
	}, got)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, 100, 100))
}

func TestBuilderList(t *testing.T) {
	r := sourcetest.NewFakeReader()
	r.UptimeSec = 100
	r.Procs = []model.ProcessEntry{
		{PID: 10, Name: "idle", UTime: 0},
		{PID: 11, Name: "busy", UTime: 4000, STime: 1000},
		{PID: 12, Name: "medium", UTime: 1000},
	}

	b := NewBuilder(r)
	got, err := b.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "busy", got[0].Name)
	assert.InDelta(t, 50.0, got[0].CPU, 1e-9)
	assert.Equal(t, "medium", got[1].Name)
	assert.Equal(t, "idle", got[2].Name)

	_, err = b.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.HzCalls, "clock rate is read once")
	assert.Equal(t, 2, r.ProcsCalls)
}

func TestBuilderLimit(t *testing.T) {
	r := sourcetest.NewFakeReader()
	r.UptimeSec = 100
	for i := 0; i < 10; i++ {
		r.Procs = append(r.Procs, model.ProcessEntry{PID: i, Name: "p", UTime: uint64(i * 100)})
	}

	got, err := NewBuilder(r, WithLimit(3)).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{9, 8, 7}, []int{got[0].PID, got[1].PID, got[2].PID})
}

func TestBuilderErrors(t *testing.T) {
	t.Run("clock rate unavailable is retried", func(t *testing.T) {
		r := sourcetest.NewFakeReader()
		r.HzErr = errors.Unavailable(nil, "sysconf")
		b := NewBuilder(r)

		_, err := b.List(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrSourceUnavailable))

		r.HzErr = nil
		_, err = b.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, r.HzCalls)
	})

	t.Run("zero clock rate", func(t *testing.T) {
		r := sourcetest.NewFakeReader()
		r.Hz = 0
		_, err := NewBuilder(r).List(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrMalformedSource))
	})

	t.Run("uptime malformed", func(t *testing.T) {
		r := sourcetest.NewFakeReader()
		r.UptimeErr = errors.Malformed(nil, "uptime")
		_, err := NewBuilder(r).List(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrMalformedSource))
	})

	t.Run("table unavailable", func(t *testing.T) {
		r := sourcetest.NewFakeReader()
		r.UptimeSec = 10
		r.ProcsErr = errors.Unavailable(nil, "readdir")
		_, err := NewBuilder(r).List(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrSourceUnavailable))
	})

	t.Run("slow table times out", func(t *testing.T) {
		r := sourcetest.NewFakeReader()
		r.UptimeSec = 10
		r.Delay = 300 * time.Millisecond
		_, err := NewBuilder(r, WithTimeout(20*time.Millisecond)).List(context.Background())
		assert.True(t, errors.IsCode(err, errors.ErrSourceUnavailable))
	})
}
