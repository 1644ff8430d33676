package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Label identifies a person. Registration ids double as labels.
type Label string

// UnknownLabel is the sentinel used for faces that belong to nobody enrolled.
const UnknownLabel Label = "-1"

// RegistrationIDLayout formats registration ids as YYYYMMDDhhmmss.
const RegistrationIDLayout = "20060102150405"

func (l Label) IsUnknown() bool {
	return l == UnknownLabel || l == ""
}

func (l Label) String() string {
	return string(l)
}

// UnmarshalJSON accepts both numbers and strings; browsers send ids as
// either depending on where they were read from.
func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode label: %w", err)
		}
		*l = Label(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode label: %w", err)
	}
	*l = Label(n.String())
	return nil
}

// Number renders the label as a bare JSON number when it is numeric, which
// is what legacy clients expect for registration ids.
func (l Label) Number() (json.Number, bool) {
	if _, err := strconv.ParseInt(string(l), 10, 64); err != nil {
		return "", false
	}
	return json.Number(l), true
}

// IsNumeric reports whether the label is a plain run of decimal digits,
// the only form allowed as a folder name under the training root.
func (l Label) IsNumeric() bool {
	if l == "" {
		return false
	}
	for _, r := range l {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Sample is one aligned face embedding with its assigned label.
type Sample struct {
	Embedding []float64 `json:"representation"`
	Label     Label     `json:"identity"`
}

// UserInfo is the partially filled registration collected before capture.
type UserInfo struct {
	Name         string `json:"name"`
	Contact      string `json:"mail"`
	Phone        string `json:"mobile"`
	Organization string `json:"company"`
}

// RegistrationRecord is an append-only registry row.
type RegistrationRecord struct {
	ID           Label     `json:"id"`
	Name         string    `json:"name"`
	Contact      string    `json:"mail"`
	Phone        string    `json:"mobile"`
	Organization string    `json:"company"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewRegistrationRecord(id Label, info UserInfo, at time.Time) RegistrationRecord {
	return RegistrationRecord{
		ID:           id,
		Name:         info.Name,
		Contact:      info.Contact,
		Phone:        info.Phone,
		Organization: info.Organization,
		CreatedAt:    at,
	}
}

// FeedbackRecord captures whether the last prediction was right. People are
// identified by their contact address here, as the client reports them.
type FeedbackRecord struct {
	WasCorrect       bool
	ActualContact    string
	PredictedContact string
	CreatedAt        time.Time
}
