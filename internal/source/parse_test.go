package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GustavoChierici/system-dashboard/internal/errors"
	"github.com/GustavoChierici/system-dashboard/internal/model"
)

const sampleProcStat = `cpu  10132153 290696 3084719 46828483 16683 0 25195 0 175628 0
cpu0 1393280 32966 572056 13343292 6130 0 17875 0 23933 0
cpu1 1335245 31245 525637 13417185 3527 0 2325 0 27341 0
intr 199292 9 0 0 0 0 0 0 0 1 0 0 0 0 0 0
ctxt 38014093
btime 1706000000
processes 26442
procs_running 1
procs_blocked 0
softirq 5057579 250191 1481983 1647 211099 186066 0 1783454 622196 12499 508444
`

func TestParseStat(t *testing.T) {
	snap, err := ParseStat([]byte(sampleProcStat))
	require.NoError(t, err)

	assert.Equal(t, model.CPUTimes{
		User: 10132153, Nice: 290696, System: 3084719, Idle: 46828483,
		Iowait: 16683, Irq: 0, Softirq: 25195, Steal: 0,
	}, snap.Aggregate)
	require.Len(t, snap.Cores, 2)
	assert.Equal(t, uint64(1393280), snap.Cores[0].User)
	assert.Equal(t, uint64(13417185), snap.Cores[1].Idle)
}

func TestParseStatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no aggregate", "cpu0 1 2 3 4 5 6 7 8\n"},
		{"no cores", "cpu 1 2 3 4 5 6 7 8\n"},
		{"too few fields", "cpu 1 2 3 4 5 6 7 8\ncpu0 1 2 3\n"},
		{"non numeric", "cpu 1 2 3 4 5 6 7 8\ncpu0 1 x 3 4 5 6 7 8\n"},
		{"negative", "cpu 1 2 3 -4 5 6 7 8\ncpu0 1 2 3 4 5 6 7 8\n"},
		{"bad label", "cpu 1 2 3 4 5 6 7 8\ncpuX 1 2 3 4 5 6 7 8\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStat([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrMalformedSource), "got %v", err)
		})
	}
}

func TestParseCPULine(t *testing.T) {
	tests := []struct {
		name    string
		fields  []string
		want    model.CPUTimes
		wantErr bool
	}{
		{
			name:   "all fields",
			fields: []string{"100", "10", "50", "500", "20", "5", "3", "2"},
			want:   model.CPUTimes{User: 100, Nice: 10, System: 50, Idle: 500, Iowait: 20, Irq: 5, Softirq: 3, Steal: 2},
		},
		{
			name:   "seven fields, no steal",
			fields: []string{"100", "10", "50", "500", "20", "5", "3"},
			want:   model.CPUTimes{User: 100, Nice: 10, System: 50, Idle: 500, Iowait: 20, Irq: 5, Softirq: 3},
		},
		{
			name:   "guest columns ignored",
			fields: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"},
			want:   model.CPUTimes{User: 1, Nice: 2, System: 3, Idle: 4, Iowait: 5, Irq: 6, Softirq: 7, Steal: 8},
		},
		{
			name:    "insufficient fields",
			fields:  []string{"100", "10", "50"},
			wantErr: true,
		},
		{
			name:    "invalid number",
			fields:  []string{"100", "abc", "50", "500", "20", "5", "3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCPULine(tt.fields)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrMalformedSource))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseUptime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"normal", "350735.47 234388.90\n", 350735.47, false},
		{"single column", "12.5", 12.5, false},
		{"empty", "", 0, true},
		{"garbage", "abc 1.0", 0, true},
		{"negative", "-1 1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUptime([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrMalformedSource))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
