// Package cms stores the editable copy, colors and fonts of the landing page.
package cms

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Content struct {
	Hero        Hero        `json:"hero"`
	Features    Features    `json:"features"`
	BookingForm BookingForm `json:"bookingForm"`
	Footer      Footer      `json:"footer"`
	Theme       Theme       `json:"theme"`
}

type Hero struct {
	Headline    []string `json:"headline"`
	Eyebrow     string   `json:"eyebrow"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CtaText     string   `json:"ctaText"`
}

type Features struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Cards       []FeatureCard `json:"cards"`
}

type FeatureCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type BookingForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Footer struct {
	BrandName   string `json:"brandName"`
	CompanyName string `json:"companyName"`
	Tagline     string `json:"tagline"`
}

type Theme struct {
	PrimaryColor string `json:"primaryColor" validate:"omitempty,hexcolor"`
	AccentColor  string `json:"accentColor" validate:"omitempty,hexcolor"`
	HeadingFont  string `json:"headingFont" validate:"max=64"`
	BodyFont     string `json:"bodyFont" validate:"max=64"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the theme values that end up in CSS variables.
func (c *Content) Validate() error {
	if c == nil {
		return errors.New("content is required")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %q check", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// DefaultContent returns a fresh copy of the built-in content, safe to mutate.
func DefaultContent() *Content {
	return &Content{
		Hero: Hero{
			Headline:    []string{"SCHEDULE", "YOUR", "APPOINTMENT", "IN SECONDS"},
			Eyebrow:     "Fast, Easy Booking",
			Title:       "Fast, Easy Booking",
			Description: "Pick a date and time that works for you — we'll automatically add it to your calendar.",
			CtaText:     "Book Now",
		},
		Features: Features{
			Title:       "Fast, Easy, and Hassle-Free Scheduling",
			Description: "No more back-and-forth emails. Our online booking form connects directly to Google Calendar so your appointment is instantly saved and confirmed.",
			Cards: []FeatureCard{
				{
					Title:       "Instant Confirmation",
					Description: "Get immediate confirmation of your booking with automated email notifications sent to both you and your clients.",
				},
				{
					Title:       "Google Calendar Sync",
					Description: "Automatically sync appointments with Google Calendar, ensuring you never miss a meeting or double-book.",
				},
				{
					Title:       "Automatic Reminders",
					Description: "Send automated reminders to clients before their appointments, reducing no-shows and improving attendance rates.",
				},
				{
					Title:       "Flexible Time Slots",
					Description: "Choose from customizable time slots that fit your schedule, with options for different appointment durations.",
				},
				{
					Title:       "Easy Rescheduling",
					Description: "Allow clients to easily reschedule or cancel appointments with just a few clicks, keeping your calendar up to date.",
				},
				{
					Title:       "Mobile Friendly",
					Description: "Book appointments on any device with our fully responsive design that works seamlessly on desktop, tablet, and mobile.",
				},
				{
					Title:       "Secure & Private",
					Description: "Your data is protected with industry-standard encryption and security measures, ensuring complete privacy and compliance.",
				},
				{
					Title:       "24/7 Availability",
					Description: "Accept bookings around the clock, even when you're offline, so clients can schedule at their convenience.",
				},
			},
		},
		BookingForm: BookingForm{
			Title:       "Book Your Appointment",
			Description: "Fill out the form below and we'll confirm your appointment",
		},
		Footer: Footer{
			BrandName:   "BookEasy",
			CompanyName: "BookEasy",
			Tagline:     "Making appointments simple",
		},
		Theme: Theme{
			PrimaryColor: "#8b5cf6",
			AccentColor:  "#7c3aed",
			HeadingFont:  "Inter",
			BodyFont:     "Inter",
		},
	}
}
