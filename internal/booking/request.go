package booking

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robertarktes/hotel-reservations/internal/domain"
)

type CreateRequest struct {
	GuestID       *uuid.UUID  `json:"guest_id"`
	HotelID       uuid.UUID   `json:"hotel_id" validate:"required"`
	RoomIDs       []uuid.UUID `json:"room_ids" validate:"required,min=1,max=10,dive,required"`
	CheckIn       string      `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut      string      `json:"check_out" validate:"required,datetime=2006-01-02"`
	VoucherID     *uuid.UUID  `json:"voucher_id"`
	PaymentMethod string      `json:"payment_method" validate:"omitempty,oneof=MOMO VNPAY CASH"`
	Notes         string      `json:"notes" validate:"max=500"`
}

type UpdateRequest struct {
	HotelID       uuid.UUID   `json:"hotel_id" validate:"required"`
	RoomIDs       []uuid.UUID `json:"room_ids" validate:"required,min=1,max=10,dive,required"`
	CheckIn       string      `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut      string      `json:"check_out" validate:"required,datetime=2006-01-02"`
	PaymentMethod string      `json:"payment_method" validate:"omitempty,oneof=MOMO VNPAY CASH"`
	Notes         string      `json:"notes" validate:"max=500"`
}

type stayRange struct {
	checkIn  time.Time
	checkOut time.Time
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// structProblems turns validator output into readable rules.
func structProblems(v *validator.Validate, req interface{}) []string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describe(fe))
	}
	return problems
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must contain at most %s item(s)", fe.Field(), fe.Param())
	case "datetime":
		return fe.Field() + " must be a date formatted as YYYY-MM-DD"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// stayProblems checks the date rules shared by create and update. Dates that
// do not parse were already reported by the struct tags.
func stayProblems(checkIn, checkOut string, today time.Time) (stayRange, []string) {
	in, errIn := time.Parse(time.DateOnly, checkIn)
	out, errOut := time.Parse(time.DateOnly, checkOut)
	if errIn != nil || errOut != nil {
		return stayRange{}, nil
	}

	var problems []string
	today = domain.DateOf(today)
	if in.Before(today) {
		problems = append(problems, "check_in must not be in the past")
	}
	if out.Before(today) {
		problems = append(problems, "check_out must not be in the past")
	}
	if !out.After(in) {
		problems = append(problems, "check_out must be after check_in")
	} else {
		nights := domain.Nights(in, out)
		if nights < domain.MinNights {
			problems = append(problems, fmt.Sprintf("stay must be at least %d night", domain.MinNights))
		}
		if nights > domain.MaxNights {
			problems = append(problems, fmt.Sprintf("stay must be at most %d nights", domain.MaxNights))
		}
	}
	return stayRange{checkIn: in, checkOut: out}, problems
}

func (s *Service) validateCreate(req CreateRequest, actor domain.Actor) (stayRange, error) {
	problems := structProblems(s.validate, req)
	if !actor.IsGuest() && req.GuestID == nil {
		problems = append(problems, "guest_id is required when booking on behalf of a guest")
	}
	stay, dateProblems := stayProblems(req.CheckIn, req.CheckOut, s.now())
	problems = append(problems, dateProblems...)
	if len(problems) > 0 {
		return stayRange{}, domain.NewValidation("invalid booking request", problems...)
	}
	return stay, nil
}

func (s *Service) validateUpdate(req UpdateRequest) (stayRange, error) {
	problems := structProblems(s.validate, req)
	stay, dateProblems := stayProblems(req.CheckIn, req.CheckOut, s.now())
	problems = append(problems, dateProblems...)
	if len(problems) > 0 {
		return stayRange{}, domain.NewValidation("invalid booking request", problems...)
	}
	return stay, nil
}

// NewCode returns a human readable booking code.
func NewCode() string {
	return "BK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
