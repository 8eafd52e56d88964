package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Wire values used by the transferências API.
	Despesa Kind = "DESPESA"
	Receita Kind = "RECEITA"
)

type (
	Kind string

	Date struct {
		time.Time
	}

	// Tag is a globally defined label. The client never creates or deletes
	// tags, it only references them by id.
	Tag struct {
		ID   int64
		Name string
	}

	// Transaction is the authoritative record as last fetched from the API.
	// Amount stays a decimal string end to end; arithmetic goes through
	// ParseAmount.
	Transaction struct {
		ID          int64
		Description string
		Amount      string
		Kind        Kind
		Date        Date
		Tags        []Tag
	}

	// User is the locally stored user record backing authenticated calls.
	User struct {
		ID    int64
		Name  string
		Email string
	}

	// Draft is the transient form state of a transaction being created or
	// edited. Tag selection is a set of ids, not embedded Tag objects.
	Draft struct {
		Description string
		Kind        Kind
		Amount      string
		Date        Date
		TagIDs      []int64
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrDuplicateTag     = errors.New("duplicate tag id")
)

// Valid reports whether k is one of the two accepted wire values.
func (k Kind) Valid() bool {
	return k == Despesa || k == Receita
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts the forms the API sends: plain YYYY-MM-DD or a full
// RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{Time: t}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Date{Time: t}, nil
	}
	return Date{}, ErrInvalidDate
}

// ISO returns the wire form (YYYY-MM-DD).
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// BR returns the display form used throughout the UI (DD/MM/YYYY).
func (d Date) BR() string {
	return d.Format("02/01/2006")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// HasTag reports whether the transaction carries a tag with the given name.
func (t Transaction) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}

// TagIDs returns the ids of the transaction's tags, in order. Used to seed
// the edit form's selection set.
func (t Transaction) TagIDs() []int64 {
	ids := make([]int64, 0, len(t.Tags))
	for _, tag := range t.Tags {
		ids = append(ids, tag.ID)
	}
	return ids
}

// Validate enforces the submission contract. It applies to both the create
// and the edit path: an edit may not clear the description or set a
// non-positive amount either.
func (d Draft) Validate() error {
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if !d.Kind.Valid() {
		return ErrInvalidKind
	}
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(d.TagIDs))
	for _, id := range d.TagIDs {
		if _, dup := seen[id]; dup {
			return ErrDuplicateTag
		}
		seen[id] = struct{}{}
	}
	return nil
}
