package contact

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and storage format of a birthday
const DateLayout = "2006-01-02"

const (
	minFieldLen = 2
	maxFieldLen = 20
)

// Contact is an address book entry owned by exactly one user
type Contact struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Surname    string    `json:"surname"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Birthday   string    `json:"birthday"`
	Additional string    `json:"additional"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Input is the body accepted by create and update
type Input struct {
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Birthday   string `json:"birthday" example:"1990-05-17"`
	Additional string `json:"additional"`
}

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize trims surrounding whitespace from every field
func (in *Input) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Birthday = strings.TrimSpace(in.Birthday)
	in.Additional = strings.TrimSpace(in.Additional)
}

// Validate checks field lengths, the email address and the birthday format.
// It returns the parsed birthday.
func (in Input) Validate() (time.Time, error) {
	for _, f := range []struct{ name, value string }{
		{"name", in.Name},
		{"surname", in.Surname},
		{"phone", in.Phone},
	} {
		if n := utf8.RuneCountInString(f.value); n < minFieldLen || n > maxFieldLen {
			return time.Time{}, &ValidationError{Field: f.name, Message: fmt.Sprintf("must be %d to %d characters", minFieldLen, maxFieldLen)}
		}
	}

	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return time.Time{}, &ValidationError{Field: "email", Message: "invalid email format"}
	}

	birthday, err := time.Parse(DateLayout, in.Birthday)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "birthday", Message: "must be a date in YYYY-MM-DD format"}
	}

	return birthday, nil
}

// upcomingDays lists the MM-DD keys of today and the following days.
// A Feb 29 birthday is celebrated on Feb 28 in common years.
func upcomingDays(today time.Time, days int) []string {
	keys := make([]string, 0, days+2)
	for i := 0; i <= days; i++ {
		d := today.AddDate(0, 0, i)
		keys = append(keys, d.Format("01-02"))
		if d.Month() == time.February && d.Day() == 28 && !isLeap(d.Year()) {
			keys = append(keys, "02-29")
		}
	}
	return keys
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
