package api

import (
	"sync"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the custom binding tags used by request types.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("fareclass", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseFareClass(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("bookingstatus", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseBookingStatus(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("paymentstatus", func(fl validator.FieldLevel) bool {
			_, err := domain.ParsePaymentStatus(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("paymentmethod", func(fl validator.FieldLevel) bool {
			_, err := domain.ParsePaymentMethod(fl.Field().String())
			return err == nil
		})
	})
}
