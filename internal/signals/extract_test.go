package signals

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractThroughputUnits(t *testing.T) {
	tests := []struct {
		unit       string
		multiplier float64
	}{
		{unit: "KB", multiplier: 1.0 / 1024},
		{unit: "MB", multiplier: 1},
		{unit: "GB", multiplier: 1024},
	}

	for _, tc := range tests {
		for _, n := range []float64{0, 0.4, 2.5, 12, 512.75} {
			t.Run(fmt.Sprintf("%g %s", n, tc.unit), func(t *testing.T) {
				line := fmt.Sprintf("%g %s/s", n, tc.unit)
				sig := Extract(line)
				require.NotNil(t, sig.Throughput, "line %q", line)
				assert.InDelta(t, n*tc.multiplier, *sig.Throughput, 1e-9)
			})
		}
	}
}

func TestExtractThroughputRequiresKnownUnit(t *testing.T) {
	for _, line := range []string{
		"2.50 TB/s",
		"2.50 mb/s",
		"2.50",
		"speed 2.50 B/s",
		"transfer rate unknown",
	} {
		t.Run(line, func(t *testing.T) {
			assert.Nil(t, Extract(line).Throughput)
		})
	}
}

func TestExtractThroughputWithoutSpace(t *testing.T) {
	sig := Extract("pulling 45% 812KB/s")
	require.NotNil(t, sig.Throughput)
	assert.InDelta(t, 812.0/1024, *sig.Throughput, 1e-9)
}

func TestExtractProgress(t *testing.T) {
	for n := 0; n <= 100; n += 5 {
		sig := Extract(fmt.Sprintf("pulling abc123... %d%% ▕███  ▏", n))
		require.NotNil(t, sig.Progress, "percent %d", n)
		assert.Equal(t, n, *sig.Progress)
	}
}

func TestExtractProgressRejectsOutOfRangeAndFractions(t *testing.T) {
	for _, line := range []string{
		"150%",
		"progress 101% done",
		"45.5% complete",
		"% without digits",
		"99999999999999999999%",
	} {
		t.Run(line, func(t *testing.T) {
			assert.Nil(t, Extract(line).Progress)
		})
	}
}

func TestExtractSizePair(t *testing.T) {
	sig := Extract("pulling 6e4c38e1172f... 45% ▕██████      ▏ 2.1 GB/4.7 GB  12 MB/s  3m35s")

	require.NotNil(t, sig.Progress)
	assert.Equal(t, 45, *sig.Progress)
	require.NotNil(t, sig.Throughput)
	assert.InDelta(t, 12.0, *sig.Throughput, 1e-9)
	require.NotNil(t, sig.Downloaded)
	require.NotNil(t, sig.Total)
	assert.Equal(t, "2.1 GB", sig.Downloaded.Text)
	assert.Equal(t, "4.7 GB", sig.Total.Text)
	assert.InDelta(t, 4.7, sig.Total.Value, 1e-9)
	assert.Equal(t, "GB", sig.Total.Unit)
	assert.Equal(t, "3m35s", sig.Remaining)
}

func TestExtractSizePairDoesNotConsumeThroughput(t *testing.T) {
	sig := Extract("2.50 MB/s")
	assert.Nil(t, sig.Downloaded)
	assert.Nil(t, sig.Total)
	require.NotNil(t, sig.Throughput)
}

func TestExtractRemainingTime(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: "12 MB/s 42s", want: "42s"},
		{line: "12 MB/s 3m   ", want: "3m"},
		{line: "1h", want: "1h"},
		{line: "eta 2m13s", want: "2m13s"},
		{line: "12 MB/s", want: ""},
		{line: "42s remaining", want: ""},
		{line: "abc42s", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, Extract(tc.line).Remaining)
		})
	}
}

func TestExtractNoSignal(t *testing.T) {
	for _, line := range []string{"", "   ", "pulling manifest", "verifying sha256 digest", "\x1b[?25l\x1b[1G"} {
		sig := Extract(line)
		assert.True(t, sig.Empty(), "line %q produced %s", line, sig)
	}
}

func TestExtractToleratesInvalidUTF8(t *testing.T) {
	sig := Extract("pulling \xff\xfe 10% 2.50 MB/s")
	require.NotNil(t, sig.Progress)
	assert.Equal(t, 10, *sig.Progress)
}

func TestCleanStripsControlSequences(t *testing.T) {
	got := Clean("\x1b[?25l\x1b[1Gpulling manifest \x1b[K\x1b[?25h  ")
	assert.Equal(t, "pulling manifest", got)
}

func TestMultiplierFallsBackToOne(t *testing.T) {
	assert.Equal(t, 1.0, Multiplier("TB/s"))
	assert.Equal(t, 1024.0, Multiplier("GB/s"))
}

func TestParseSize(t *testing.T) {
	size := ParseSize(" 512 KB ")
	assert.Equal(t, "512 KB", size.Text)
	assert.Equal(t, 512.0, size.Value)
	assert.Equal(t, "KB", size.Unit)

	opaque := ParseSize("lots")
	assert.Equal(t, "lots", opaque.Text)
	assert.Empty(t, opaque.Unit)
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "no signal", Signal{}.String())
	assert.Equal(t, "progress=10% speed=2.50MB/s", Extract("10% 2.50 MB/s").String())
}
