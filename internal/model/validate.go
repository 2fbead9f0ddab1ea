package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var queryValidator = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidQuery wraps every error returned by RecordQuery.Validate.
var ErrInvalidQuery = errors.New("invalid record query")

// Validate checks the pagination bounds and date range of q, and that every
// filter value is a canonical option of its dimension. A range may touch at
// most MaxRangeDays days.
func (q RecordQuery) Validate() error {
	if err := queryValidator.Struct(q); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidQuery, strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if days := (DateRange{Start: q.Start, End: q.End}).Days(); days > MaxRangeDays {
		return fmt.Errorf("%w: range spans %d days, max %d", ErrInvalidQuery, days, MaxRangeDays)
	}
	for _, d := range Dimensions {
		for _, v := range q.Filters.Get(d) {
			if !d.IsOption(v) {
				return fmt.Errorf("%w: %q is not a %s option", ErrInvalidQuery, v, d)
			}
		}
	}
	return nil
}
