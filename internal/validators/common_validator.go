package validators

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/utils"
)

var validate *validator.Validate

var (
	upiIDRegex    = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9]{2,64}$`)
	ifscCodeRegex = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountRegex  = regexp.MustCompile(`^[0-9]{9,18}$`)
	htmlTagRegex  = regexp.MustCompile(`<[^>]*>`)
)

func init() {
	validate = validator.New()

	// Register custom validation functions
	validate.RegisterValidation("object_id", validateObjectID)
	validate.RegisterValidation("upi_id", validateUPIID)
	validate.RegisterValidation("ifsc_code", validateIFSCCode)
	validate.RegisterValidation("account_number", validateAccountNumber)
	validate.RegisterValidation("amount", validateAmount)
	validate.RegisterValidation("currency_code", validateCurrencyCode)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return ValidationErrors{{Field: "request", Message: err.Error()}}
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: getErrorMessage(fe),
			})
		}
	}

	return validationErrors
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "required_if":
		return fmt.Sprintf("%s is required for this payment method", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "object_id":
		return "Invalid ID format"
	case "upi_id":
		return "Invalid UPI ID"
	case "ifsc_code":
		return "Invalid IFSC code"
	case "account_number":
		return "Account number must be 9 to 18 digits"
	case "amount":
		return "Amount must be positive with at most two decimals"
	case "currency_code":
		return "Invalid currency code"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

// Custom validation functions
func validateObjectID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let required tag handle empty values
	}
	_, err := primitive.ObjectIDFromHex(value)
	return err == nil
}

func validateUPIID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return upiIDRegex.MatchString(value)
}

func validateIFSCCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return ifscCodeRegex.MatchString(strings.ToUpper(value))
}

func validateAccountNumber(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return accountRegex.MatchString(value)
}

func validateAmount(fl validator.FieldLevel) bool {
	amount := fl.Field().Float()
	if amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return false
	}
	return math.Abs(amount*100-math.Round(amount*100)) < 1e-6
}

func validateCurrencyCode(fl validator.FieldLevel) bool {
	return utils.ValidateCurrencyCode(fl.Field().String())
}

func SanitizeInput(input string) string {
	// Remove HTML tags and trim whitespace
	cleaned := htmlTagRegex.ReplaceAllString(input, "")
	return strings.TrimSpace(cleaned)
}
