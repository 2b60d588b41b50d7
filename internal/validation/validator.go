package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/storelane/checkout/internal/orders"
)

// New returns a configured validator with custom rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// order_status restricts status-change requests to the known states;
	// whether the transition is legal is the state machine's call, not the
	// validator's.
	_ = v.RegisterValidation("order_status", func(fl validatorv10.FieldLevel) bool {
		return orders.KnownStatus(fl.Field().String())
	})

	return v
}
