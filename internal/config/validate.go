package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/KilimcininKorOglu/ldapc/internal/sasl"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("mechanism", func(fl validator.FieldLevel) bool {
			return knownMechanism(fl.Field().String())
		})
	})
	return validate
}

func knownMechanism(name string) bool {
	if strings.EqualFold(name, "SIMPLE") {
		return true
	}
	for _, n := range sasl.Names() {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}

// ValidateConfig validates the configuration and returns a list of validation errors.
// An empty slice indicates the configuration is valid.
func ValidateConfig(cfg *Config) []error {
	var errs []error

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []error{err}
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{Field: fieldPath(fe), Message: tagMessage(fe)})
		}
	}

	errs = append(errs, validateBindConfig(cfg)...)
	return errs
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when enabled"
	case "hostname_port":
		return fmt.Sprintf("must be host:port, got %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "mechanism":
		return fmt.Sprintf("unknown mechanism %q, must be SIMPLE or one of: %s", fe.Value(), strings.Join(sasl.Names(), ", "))
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fe.Value())
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}

// validateBindConfig checks that the credentials the selected mechanism
// needs are present.
func validateBindConfig(cfg *Config) []error {
	var errs []error
	b := &cfg.Bind
	mech := strings.ToUpper(b.Mechanism)

	need := func(field, value string) {
		if value == "" {
			errs = append(errs, ValidationError{
				Field:   "bind." + field,
				Message: fmt.Sprintf("is required for %s", mech),
			})
		}
	}

	switch {
	case mech == "":
	case mech == "SIMPLE":
		need("dn", b.DN)
	case mech == "PLAIN", mech == "CRAM-MD5", mech == "DIGEST-MD5", strings.HasPrefix(mech, "SCRAM-"):
		need("username", b.Username)
		need("password", b.Password)
	case mech == "GSSAPI":
		need("username", b.Username)
		if cfg.Kerberos.Krb5Conf == "" {
			errs = append(errs, ValidationError{Field: "kerberos.krb5_conf", Message: "is required for GSSAPI"})
		}
		if cfg.Kerberos.Keytab == "" && b.Password == "" {
			errs = append(errs, ValidationError{Field: "kerberos.keytab", Message: "keytab or bind.password is required for GSSAPI"})
		}
	}
	return errs
}
