package date

import (
	"encoding/json"
	"testing"
	"time"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		// Note that usually time.Time are not comparable (there is a pointer for the timezone) this
		// tests also checks that the property remain true
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestParse(t *testing.T) {
	testCases := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{in: "2020-01-01", want: New(2020, time.January, 1)},
		{in: "2025-7-1", want: New(2025, time.July, 1)},
		{in: " 2024-02-29 ", want: New(2024, time.February, 29)},
		{in: "2023-05-06T10:11:12Z", want: New(2023, time.May, 6)},
		{in: "not a date", wantErr: true},
		{in: "", wantErr: true},
		{in: "2023-13-01", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	d := New(2024, time.March, 9)
	data, err := json.Marshal(struct {
		On Date `json:"on"`
	}{d})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if want := `{"on":"2024-03-09"}`; string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}
}

func TestNormalize(t *testing.T) {
	if got, want := New(2024, time.January, 1-1050), New(2021, time.February, 15); got != want {
		t.Errorf("New(2024, 1, -1049) = %v, want %v", got, want)
	}
	if got := Of(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC)); got != New(2024, time.February, 29) {
		t.Errorf("Of() = %v, want 2024-02-29", got)
	}
}

func TestParseMonth(t *testing.T) {
	testCases := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{in: "2020-01", want: "2020-01"},
		{in: "2020-01-15", want: "2020-01"},
		{in: "1999-12", want: "1999-12"},
		{in: "2020-1", wantErr: true},
		{in: "garbage", wantErr: true},
	}
	for _, tc := range testCases {
		got, err := ParseMonth(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMonth(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMonth(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMonthOrder(t *testing.T) {
	// lexicographic order must be chronological order.
	if !(Month("2019-12") < Month("2020-01")) {
		t.Errorf("2019-12 should sort before 2020-01")
	}
	if got := MonthOf(New(2024, time.January, 31)); got != "2024-01" {
		t.Errorf("MonthOf() = %q, want 2024-01", got)
	}
	if got := Month("2024-02").FirstDay(); got != New(2024, time.February, 1) {
		t.Errorf("FirstDay() = %v, want 2024-02-01", got)
	}
}
