package dto

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/baechuer/natours-auth/internal/domain"
)

var (
	initOnce sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

func setup() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report json names ("passwordConfirm") instead of Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	trans, _ = ut.New(enLocale, enLocale).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// Validate checks the struct tags of req. The first failing field becomes
// an invalid_field error whose reason is the English translation.
func Validate(req any) error {
	initOnce.Do(setup)

	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrInvalidJSON(err)
	}
	fe := ves[0]
	return domain.ErrInvalidField(fe.Field(), fe.Translate(trans))
}
