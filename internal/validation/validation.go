// Package validation checks booking and payment payloads before any side
// effect happens. Every applicable problem is reported, not just the first.
package validation

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/Shivanand-hulikatti/booking-payments-api/internal/model"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-+()]+$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// Result is the outcome of a validation pass.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// messages maps "<StructField>.<tag>" to the message shown to the client.
var messages = map[string]string{
	"FirstName.min_trimmed":       "First name must be at least 2 characters",
	"LastName.min_trimmed":        "Last name must be at least 2 characters",
	"Email.loose_email":           "Valid email address is required",
	"Phone.phone_number":          "Valid phone number is required",
	"ServiceID.present":           "Service selection is required",
	"ServiceName.present":         "Service selection is required",
	"PreferredDate.present":       "Preferred date is required",
	"PreferredDate.calendar_date": "Preferred date must be a valid date",
	"PreferredDate.not_past":      "Preferred date cannot be in the past",
}

var paymentMessages = map[string]string{
	"Amount.positive_amount":    "Valid amount is required",
	"ServiceID.present":         "Service ID is required",
	"CustomerEmail.loose_email": "Valid customer email is required",
	"BookingID.present":         "Booking ID is required",
}

// Validator validates request payloads. It is safe for concurrent use.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the clock used for the "not in the past" date rule.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New constructs a Validator with the custom rules registered.
func New(opts ...Option) *Validator {
	val := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(val)
	}

	// Registration only fails on an empty tag or nil func.
	_ = val.v.RegisterValidation("present", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = val.v.RegisterValidation("min_trimmed", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= n
	})
	_ = val.v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return IsEmail(fl.Field().String())
	})
	_ = val.v.RegisterValidation("phone_number", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	_ = val.v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	_ = val.v.RegisterValidation("not_past", func(fl validator.FieldLevel) bool {
		d, err := ParseDate(fl.Field().String())
		if err != nil {
			return false
		}
		now := val.now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return !d.Before(today)
	})
	_ = val.v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		_, err := ParseAmount(fl.Field().String())
		return err == nil
	})
	return val
}

// Booking validates a booking submission.
func (v *Validator) Booking(req model.BookingRequest) Result {
	return v.run(req, messages)
}

// Payment validates a payment intent request.
func (v *Validator) Payment(req model.PaymentIntentRequest) Result {
	return v.run(req, paymentMessages)
}

func (v *Validator) run(s any, msgs map[string]string) (res Result) {
	res = Result{Valid: true, Errors: []string{}}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Valid: false, Errors: []string{"Invalid request"}}
		}
	}()

	err := v.v.Struct(s)
	if err == nil {
		return res
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Result{Valid: false, Errors: []string{"Invalid request"}}
	}

	seen := make(map[string]bool, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := msgs[fe.StructField()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		if seen[msg] {
			continue
		}
		seen[msg] = true
		res.Errors = append(res.Errors, msg)
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// IsEmail reports whether s looks like an address: no whitespace, one @,
// and a dot in the domain.
func IsEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// IsPhone reports whether s contains only phone punctuation and at least ten
// digits.
func IsPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phonePattern.MatchString(s) {
		return false
	}
	return len(nonDigits.ReplaceAllString(s, "")) >= 10
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseAmount parses a decimal display amount that must be finite and
// strictly positive.
func ParseAmount(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, strconv.ErrRange
	}
	return f, nil
}
