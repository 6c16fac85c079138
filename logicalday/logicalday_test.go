package logicalday_test

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulogme/logicalday"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		instant  time.Time
		boundary int
		want     string
	}{
		{"BeforeBoundary", time.Date(2024, 6, 2, 1, 30, 0, 0, time.UTC), 7, "2024-06-01"},
		{"AtBoundary", time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC), 7, "2024-06-02"},
		{"JustBeforeBoundary", time.Date(2024, 6, 2, 6, 59, 59, 999, time.UTC), 7, "2024-06-01"},
		{"LateEvening", time.Date(2024, 6, 2, 23, 45, 0, 0, time.UTC), 7, "2024-06-02"},
		{"MidnightBoundary", time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), 0, "2024-06-02"},
		{"LastHourBoundary", time.Date(2024, 6, 2, 22, 59, 0, 0, time.UTC), 23, "2024-06-01"},
		{"MonthRollover", time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), 7, "2024-02-29"},
		{"YearRollover", time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC), 7, "2024-12-31"},
		{"LocalZone", time.Date(2024, 6, 2, 1, 30, 0, 0, paris), 7, "2024-06-01"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := logicalday.Resolve(tc.instant, tc.boundary)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestResolveAcrossSkippedDay(t *testing.T) {
	t.Parallel()

	// Samoa skipped 2011-12-30 entirely when it crossed the date line.
	apia, err := time.LoadLocation("Pacific/Apia")
	require.NoError(t, err)

	got := logicalday.Resolve(time.Date(2011, 12, 31, 1, 0, 0, 0, apia), 7)
	assert.Equal(t, "2011-12-30", got.String())
	got = logicalday.Resolve(time.Date(2011, 12, 31, 8, 0, 0, 0, apia), 7)
	assert.Equal(t, "2011-12-31", got.String())
}

func TestResolveEveryHour(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	for boundary := 0; boundary < 24; boundary++ {
		for hour := 0; hour < 24; hour++ {
			instant := day.Add(time.Duration(hour)*time.Hour + 17*time.Minute)
			want := logicalday.DateOf(day)
			if hour < boundary {
				want = want.AddDays(-1)
			}
			require.Equal(t, want, logicalday.Resolve(instant, boundary), "boundary=%d hour=%d", boundary, hour)
		}
	}
}

func TestDateScanAndJSON(t *testing.T) {
	t.Parallel()

	var d logicalday.Date
	require.NoError(t, d.Scan("2024-06-01"))
	assert.Equal(t, logicalday.MustParse("2024-06-01"), d)

	require.NoError(t, d.Scan([]byte("2023-12-31")))
	assert.Equal(t, "2023-12-31", d.String())

	require.NoError(t, d.Scan(time.Date(2022, 2, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2022-02-03", d.String())

	require.Error(t, d.Scan(42))

	b, err := json.Marshal(struct {
		Date logicalday.Date `json:"date"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2022-02-03"}`, string(b))

	_, err = logicalday.Parse("02/03/2022")
	require.Error(t, err)
	assert.True(t, logicalday.MustParse("2022-02-03").Before(logicalday.MustParse("2022-02-04")))
}
