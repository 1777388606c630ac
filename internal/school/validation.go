package school

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const MaxImageSize = 5 * 1024 * 1024

var (
	schoolNamePattern = regexp.MustCompile(`^[a-zA-Z\s\-\.&']+$`)
	cityPattern       = regexp.MustCompile(`^[a-zA-Z\s\-\.]+$`)
	statePattern      = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	contactPattern    = regexp.MustCompile(`^[\+]?[1-9][\d]{9,14}$`)

	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/webp": true,
	}
)

var messages = map[string]map[string]string{
	"name": {
		"min":        "School name must be at least 2 characters",
		"max":        "School name must not exceed 100 characters",
		"schoolname": "School name can only contain letters, spaces, hyphens, periods, and ampersands",
		"notblank":   "School name cannot be empty or just spaces",
	},
	"address": {
		"min":      "Address must be at least 10 characters",
		"max":      "Address must not exceed 200 characters",
		"notblank": "Address cannot be empty or just spaces",
	},
	"city": {
		"min":      "City must be at least 2 characters",
		"max":      "City must not exceed 50 characters",
		"city":     "City can only contain letters, spaces, hyphens, and periods",
		"notblank": "City cannot be empty or just spaces",
	},
	"state": {
		"min":       "State must be at least 2 characters",
		"max":       "State must not exceed 50 characters",
		"statename": "State can only contain letters and spaces",
		"notblank":  "State cannot be empty or just spaces",
	},
	"contact": {
		"min":      "Contact number must be at least 10 digits",
		"max":      "Contact number must not exceed 15 digits",
		"contact":  "Please enter a valid contact number (10-15 digits, may start with +)",
		"notblank": "Contact number cannot be empty or just spaces",
	},
	"email_id": {
		"min":      "Email must be at least 5 characters",
		"max":      "Email must not exceed 100 characters",
		"email":    "Please enter a valid email address",
		"notblank": "Email cannot be empty or just spaces",
	},
	"image": {
		"imagecount": "Only one image can be uploaded",
		"imagesize":  "Image size must be less than 5MB",
		"imagetype":  "Only JPEG, PNG, and WebP images are allowed",
	},
}

// Schema validates the add-school form. Rules on a field run in tag order
// (length, pattern, non-blank) and the first failing rule wins.
type Schema struct {
	validate *validator.Validate
}

func NewSchema() *Schema {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "schoolname", matches(schoolNamePattern))
	mustRegister(v, "city", matches(cityPattern))
	mustRegister(v, "statename", matches(statePattern))
	mustRegister(v, "contact", matches(contactPattern))
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	v.RegisterStructValidation(validateImages, Form{})

	return &Schema{validate: v}
}

// Validate returns one message per invalid field, or nil when the form is valid.
func (s *Schema) Validate(form Form) FieldErrors {
	err := s.validate.Struct(form)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"form": err.Error()}
	}

	out := make(FieldErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe.Field(), fe.Tag())
	}
	return out
}

func message(field, tag string) string {
	if msg, ok := messages[field][tag]; ok {
		return msg
	}
	return field + " is invalid"
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func validateImages(sl validator.StructLevel) {
	form := sl.Current().Interface().(Form)

	switch {
	case len(form.Images) == 0:
		return
	case len(form.Images) > 1:
		sl.ReportError(form.Images, "image", "Images", "imagecount", "")
	case form.Images[0].Size > MaxImageSize:
		sl.ReportError(form.Images, "image", "Images", "imagesize", "")
	case !allowedImageTypes[strings.ToLower(form.Images[0].ContentType)]:
		sl.ReportError(form.Images, "image", "Images", "imagetype", "")
	}
}
