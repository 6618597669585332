// Package booking validates appointment requests and hands them to a Scheduler.
package booking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lowc1012/bookeasy/internal/log"
	"go.uber.org/zap"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	StatusConfirmed = "confirmed"

	missingFieldsMessage = "Missing required fields"
)

var personName = regexp.MustCompile(`^[A-Za-zÀ-ÖØ-öø-ÿ' -]+$`)

type Request struct {
	Name    string `json:"name" validate:"required,min=2,max=100,personname"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone,omitempty" validate:"max=32"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Time    string `json:"time" validate:"required,datetime=15:04"`
	Message string `json:"message,omitempty" validate:"max=1000"`
}

func (r *Request) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Message = strings.TrimSpace(r.Message)
}

type Appointment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	StartsAt  time.Time `json:"startsAt"`
}

// ValidationError carries one message per offending field.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var fieldMessages = map[string]map[string]string{
	"name": {
		"min":        "Name must be at least 2 characters.",
		"max":        "Name must be less than 100 characters.",
		"personname": "Full name can only include letters, spaces, hyphens, and apostrophes.",
	},
	"email": {
		"email": "Please enter a valid email address.",
		"max":   "Email must be less than 255 characters.",
	},
	"phone":   {"max": "Phone must be less than 32 characters."},
	"date":    {"datetime": "Please select a date."},
	"time":    {"datetime": "Please select a time."},
	"message": {"max": "Message must be less than 1000 characters."},
}

// Scheduler places a confirmed appointment on a calendar.
type Scheduler interface {
	Schedule(ctx context.Context, appointment *Appointment) error
}

// SimulatedScheduler stands in for a calendar integration and only logs the appointment.
type SimulatedScheduler struct{}

func (SimulatedScheduler) Schedule(_ context.Context, appointment *Appointment) error {
	log.Logger().Info("Simulated calendar event created",
		zap.String("id", appointment.ID),
		zap.Time("startsAt", appointment.StartsAt))
	return nil
}

type Service struct {
	scheduler Scheduler
	location  *time.Location
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService builds a booking service; appointment dates and times are read in loc.
func NewService(scheduler Scheduler, loc *time.Location, opts ...Option) *Service {
	if scheduler == nil {
		scheduler = SimulatedScheduler{}
	}
	if loc == nil {
		loc = time.UTC
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personName.MatchString(fl.Field().String())
	})

	s := &Service{
		scheduler: scheduler,
		location:  loc,
		validate:  v,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate normalizes req in place and checks it, including that the slot is not in the past.
func (s *Service) Validate(req *Request) (time.Time, error) {
	if req == nil {
		return time.Time{}, &ValidationError{Message: missingFieldsMessage}
	}
	req.normalize()

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return time.Time{}, err
		}
		return time.Time{}, newValidationError(verrs)
	}

	startsAt, err := time.ParseInLocation(DateLayout+" "+TimeLayout, req.Date+" "+req.Time, s.location)
	if err != nil {
		return time.Time{}, &ValidationError{
			Message: "Please select a valid date and time.",
			Fields:  map[string]string{"time": "Please select a valid date and time."},
		}
	}
	if startsAt.Before(s.now()) {
		msg := "The selected date and time must be in the future."
		return time.Time{}, &ValidationError{Message: msg, Fields: map[string]string{"time": msg}}
	}
	return startsAt, nil
}

// Book validates req and schedules the appointment.
func (s *Service) Book(ctx context.Context, req *Request) (*Appointment, error) {
	startsAt, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	appointment := &Appointment{
		ID:        s.newID(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Date:      req.Date,
		Time:      req.Time,
		Message:   req.Message,
		Status:    StatusConfirmed,
		CreatedAt: s.now().UTC(),
		StartsAt:  startsAt,
	}

	if err := s.scheduler.Schedule(ctx, appointment); err != nil {
		return nil, fmt.Errorf("schedule appointment: %w", err)
	}

	log.Logger().Info("Appointment booked",
		zap.String("id", appointment.ID),
		zap.String("date", appointment.Date),
		zap.String("time", appointment.Time))
	return appointment, nil
}

func newValidationError(verrs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	missing := false
	for _, fe := range verrs {
		field := fe.Field()
		if fe.Tag() == "required" {
			missing = true
			out.Fields[field] = "This field is required."
			continue
		}
		msg := fieldMessages[field][fe.Tag()]
		if msg == "" {
			msg = fmt.Sprintf("Invalid %s.", field)
		}
		out.Fields[field] = msg
		if out.Message == "" {
			out.Message = msg
		}
	}
	if missing {
		out.Message = missingFieldsMessage
	}
	return out
}
