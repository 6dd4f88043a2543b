// Package task holds the to-do records and the store that persists them.
package task

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const MaxTextLength = 500

// Timestamps are stored in UTC with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrNotFound     = errors.New("task not found")
	ErrEmptyText    = errors.New("task text is empty")
	ErrTextTooLong  = errors.New("task text is too long")
	ErrInvalidTask  = errors.New("task failed validation")
	ErrInvalidStyle = errors.New("unknown text style")
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Next advances through low, normal, high and back to low.
func (p Priority) Next() Priority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// Rank orders priorities with high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityNormal:
		return 1
	default:
		return 2
	}
}

func ParsePriority(v string) (Priority, bool) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(v))); p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return p, true
	}
	return PriorityNormal, false
}

type Style string

const (
	StyleBold          Style = "bold"
	StyleItalic        Style = "italic"
	StyleUnderline     Style = "underline"
	StyleStrikethrough Style = "strikethrough"
)

// Styles lists the known text styles in display order.
func Styles() []Style {
	return []Style{StyleBold, StyleItalic, StyleUnderline, StyleStrikethrough}
}

func ParseStyle(v string) (Style, bool) {
	s := Style(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range Styles() {
		if s == known {
			return s, true
		}
	}
	return "", false
}

type Task struct {
	ID           string    `json:"id" validate:"required"`
	Text         string    `json:"text" validate:"required,max=500"`
	Completed    bool      `json:"completed"`
	Important    bool      `json:"important"`
	Priority     Priority  `json:"priority" validate:"priority"`
	Date         time.Time `json:"date" validate:"required"`
	TextStyles   []Style   `json:"textStyles" validate:"dive,textstyle"`
	CreatedAt    string    `json:"createdAt"`
	LastModified string    `json:"lastModified"`
}

// HasStyle reports whether s is applied to the task text.
func (t Task) HasStyle(s Style) bool {
	for _, v := range t.TextStyles {
		if v == s {
			return true
		}
	}
	return false
}

func (t Task) clone() Task {
	t.TextStyles = append([]Style{}, t.TextStyles...)
	return t
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		_, ok := ParsePriority(fl.Field().String())
		return ok
	})
	v.RegisterValidation("textstyle", func(fl validator.FieldLevel) bool {
		_, ok := ParseStyle(fl.Field().String())
		return ok
	})
	return v
}

// Validate applies the same shape rules used when loading stored tasks.
func Validate(t Task) error {
	if err := validate.Struct(t); err != nil {
		return errors.Join(ErrInvalidTask, err)
	}
	return nil
}

func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", ErrTextTooLong
	}
	return text, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func isoTime(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
