package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// SendJSONResponse sends a JSON response with the given status code and data
func SendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Println(ErrorWithTrace(err, "failed to encode response"))
	}
}

// HandleError standardizes error handling by sending a JSON error response
func HandleError(w http.ResponseWriter, status int, message string) {
	SendJSONResponse(w, status, map[string]string{
		"message": message,
	})
}

// HandleCodedError sends an error body that also carries a machine readable code.
func HandleCodedError(w http.ResponseWriter, status int, code, message string, extra map[string]string) {
	body := map[string]string{
		"code":    code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	SendJSONResponse(w, status, body)
}

// HashPassword hashes a plaintext password using bcrypt
func HashPassword(password string) (string, error) {
	hashPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashPassword), nil
}

func CheckPassword(hashedPassword, plainPassword string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
}

// ErrorWithTrace prefixes err with the file and line of the caller.
func ErrorWithTrace(err error, errMessage string) error {
	if err != nil {
		// Skip 1 level to get the caller of this function
		_, file, line, _ := runtime.Caller(1)
		return fmt.Errorf("%s:%d: %v %s", file, line, err, errMessage)
	}
	return nil
}

// FormatPrice renders an amount as "$1,234.50".
func FormatPrice(value decimal.Decimal) string {
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}
	fixed := value.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%s", sign, b.String(), frac)
}

// MinorUnits converts an amount to its integer value in cents.
func MinorUnits(value decimal.Decimal) int64 {
	return value.Shift(2).Round(0).IntPart()
}
