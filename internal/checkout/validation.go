package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	expiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)
)

const minCardDigits = 13

// Shipping is the first section of the checkout form.
type Shipping struct {
	FirstName string `json:"firstName" validate:"notblank"`
	LastName  string `json:"lastName" validate:"notblank"`
	Email     string `json:"email" validate:"notblank,mailbox"`
	Phone     string `json:"phone" validate:"notblank"`
	Address   string `json:"address" validate:"notblank"`
	City      string `json:"city" validate:"notblank"`
	State     string `json:"state" validate:"notblank"`
	ZipCode   string `json:"zipCode" validate:"notblank"`
	Country   string `json:"country" validate:"notblank"`
}

// Payment is the second section. Card data never leaves the workflow.
type Payment struct {
	CardNumber string `json:"cardNumber" validate:"notblank,cardnumber"`
	ExpiryDate string `json:"expiryDate" validate:"notblank,expiry"`
	CVV        string `json:"cvv" validate:"notblank,min=3"`
	CardName   string `json:"cardName" validate:"notblank"`
}

var labels = map[string]string{
	"firstName":  "First name",
	"lastName":   "Last name",
	"email":      "Email",
	"phone":      "Phone number",
	"address":    "Address",
	"city":       "City",
	"state":      "State",
	"zipCode":    "ZIP code",
	"country":    "Country",
	"cardNumber": "Card number",
	"expiryDate": "Expiry date",
	"cvv":        "CVV",
	"cardName":   "Cardholder name",
}

var formatMessages = map[string]string{
	"mailbox":    "Invalid email format",
	"cardnumber": "Invalid card number",
	"expiry":     "Format: MM/YY",
	"min":        "Invalid CVV",
}

// ValidationError lists the fields that blocked a step.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid fields: %s", strings.Join(names, ", "))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"mailbox": func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(fl.Field().String())
		},
		"cardnumber": func(fl validator.FieldLevel) bool {
			digits := strings.Join(strings.Fields(fl.Field().String()), "")
			return len(digits) >= minCardDigits
		},
		"expiry": func(fl validator.FieldLevel) bool {
			return expiryPattern.MatchString(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

// fieldErrors maps each invalid field to its user-facing message. An empty
// map means the section is valid.
func fieldErrors(v *validator.Validate, section any) map[string]string {
	result := make(map[string]string)

	err := v.Struct(section)
	if err == nil {
		return result
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		result["form"] = err.Error()
		return result
	}

	for _, fe := range verrs {
		field := fe.Field()
		if fe.Tag() == "notblank" {
			result[field] = labels[field] + " is required"
			continue
		}
		if msg, ok := formatMessages[fe.Tag()]; ok {
			result[field] = msg
			continue
		}
		result[field] = "Invalid " + strings.ToLower(labels[field])
	}
	return result
}
