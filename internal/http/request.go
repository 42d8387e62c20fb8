package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBodySize = 1 << 20 // 1MB

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId" validate:"required,mongodb"`
	Quantity  int    `json:"quantity"  validate:"required,min=1,max=100"`
}

func (AddItemRequestDTO) messages() map[string]string {
	return map[string]string{
		"productId": "Valid product ID is required",
		"quantity":  "Quantity must be between 1 and 100",
	}
}

type UpdateItemRequestDTO struct {
	// Quantity is a pointer so an explicit 0 (remove) differs from a missing field.
	Quantity *int `json:"quantity" validate:"required,min=0,max=100"`
}

func (UpdateItemRequestDTO) messages() map[string]string {
	return map[string]string{
		"quantity": "Quantity must be between 0 and 100",
	}
}

type validatable interface {
	messages() map[string]string
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure it
// writes the 400 response and returns false.
func decodeAndValidate[T validatable](w http.ResponseWriter, r *http.Request, dst *T) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return false
	}

	err := validate.Struct(dst)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondError(w, r, http.StatusBadRequest, "Validation failed")
		return false
	}

	msgs := (*dst).messages()
	fieldErrors := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := msgs[fe.Field()]
		if !ok {
			msg = fe.Error()
		}
		fieldErrors = append(fieldErrors, FieldError{Field: fe.Field(), Message: msg})
	}
	respondJSON(w, r, http.StatusBadRequest, Envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  fieldErrors,
	})
	return false
}
