package contact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput_Validate(t *testing.T) {
	valid := Input{Name: "Anna", Surname: "Smith", Email: "anna@example.com", Phone: "+380501234567", Birthday: "1990-05-17"}

	birthday, err := valid.Validate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC), birthday)

	tests := []struct {
		name   string
		modify func(*Input)
		field  string
	}{
		{name: "name too short", modify: func(in *Input) { in.Name = "A" }, field: "name"},
		{name: "surname too long", modify: func(in *Input) { in.Surname = "Abcdefghijklmnopqrstu" }, field: "surname"},
		{name: "phone empty", modify: func(in *Input) { in.Phone = "" }, field: "phone"},
		{name: "email invalid", modify: func(in *Input) { in.Email = "anna" }, field: "email"},
		{name: "birthday format", modify: func(in *Input) { in.Birthday = "17/05/1990" }, field: "birthday"},
		{name: "birthday impossible", modify: func(in *Input) { in.Birthday = "1990-02-30" }, field: "birthday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			_, err := in.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestInput_Normalize(t *testing.T) {
	in := Input{Name: "  Anna ", Email: " anna@example.com\n"}
	in.Normalize()

	assert.Equal(t, "Anna", in.Name)
	assert.Equal(t, "anna@example.com", in.Email)
}

func TestUpcomingDays(t *testing.T) {
	tests := []struct {
		name  string
		today time.Time
		want  []string
	}{
		{
			name:  "within a month",
			today: time.Date(2025, time.May, 14, 0, 0, 0, 0, time.UTC),
			want:  []string{"05-14", "05-15", "05-16", "05-17", "05-18", "05-19", "05-20", "05-21"},
		},
		{
			name:  "across new year",
			today: time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC),
			want:  []string{"12-29", "12-30", "12-31", "01-01", "01-02", "01-03", "01-04", "01-05"},
		},
		{
			name:  "leap day in a common year",
			today: time.Date(2025, time.February, 25, 0, 0, 0, 0, time.UTC),
			want:  []string{"02-25", "02-26", "02-27", "02-28", "02-29", "03-01", "03-02", "03-03", "03-04"},
		},
		{
			name:  "leap day in a leap year",
			today: time.Date(2028, time.February, 25, 0, 0, 0, 0, time.UTC),
			want:  []string{"02-25", "02-26", "02-27", "02-28", "02-29", "03-01", "03-02", "03-03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upcomingDays(tt.today, 7))
		})
	}
}
