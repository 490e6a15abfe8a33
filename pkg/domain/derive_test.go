package domain

import (
	"testing"
	"time"
)

func TestIsBirthday(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 10, 0, 0, 0, time.UTC) }
	leap := date(1996, time.February, 29)
	cases := []struct {
		dob, now time.Time
		want     bool
	}{
		{date(1985, time.March, 10), date(2025, time.March, 10), true},
		{date(1985, time.March, 10), date(2025, time.March, 11), false},
		{leap, date(2025, time.February, 28), true},
		{leap, date(2025, time.March, 1), false},
		{leap, date(2024, time.February, 28), false},
		{leap, date(2024, time.February, 29), true},
		{leap, date(2100, time.February, 28), true},
		{time.Time{}, date(2025, time.January, 1), false},
	}
	for _, tc := range cases {
		if got := IsBirthday(tc.dob, tc.now); got != tc.want {
			t.Fatalf("IsBirthday(%s, %s) = %v, want %v", tc.dob.Format(time.DateOnly), tc.now.Format(time.DateOnly), got, tc.want)
		}
	}
}
