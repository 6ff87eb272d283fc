// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/util"
)

// pageParams are the query parameters shared by every list. A limit of -1
// asks for everything.
type pageParams struct {
	Fields string `query:"fields" validate:"omitempty,oneof=minimal full sitemap homepage navigation sidebar"`
	Limit  *int   `query:"limit" validate:"omitempty,min=-1,max=500"`
	Offset int    `query:"offset" validate:"min=0"`
}

type destinationParams struct {
	pageParams
	Type       string `query:"type" validate:"omitempty,destination_type"`
	RegionID   int64  `query:"region_id" validate:"min=0"`
	ProvinceID int64  `query:"province_id" validate:"min=0"`
	Featured   bool   `query:"featured"`
}

type articleParams struct {
	pageParams
	CategoryID     int64  `query:"category_id" validate:"min=0"`
	DestinationID  int64  `query:"destination_id" validate:"min=0"`
	FeaturedStatus string `query:"featured_status" validate:"omitempty,featured_status"`
	Total          bool   `query:"total"`
}

type companyParams struct {
	pageParams
	CategoryID    int64 `query:"category_id" validate:"min=0"`
	DestinationID int64 `query:"destination_id" validate:"min=0"`
	Featured      bool  `query:"featured"`
}

// lookupParams are the path and query parameters of a single-item route.
type lookupParams struct {
	Slug   string `query:"slug" validate:"required,slug"`
	Fields string `query:"fields" validate:"omitempty,oneof=minimal full sitemap homepage navigation sidebar"`
}

type purgeParams struct {
	Entity string `query:"entity" validate:"omitempty,oneof=destinations articles companies categorias sitemap"`
	Lang   string `query:"lang" validate:"omitempty,bcp47_language_tag"`
}

// queryValidator validates request parameters and reports failures keyed by
// parameter name.
type queryValidator struct {
	validate *validator.Validate
}

func newQueryValidator() *queryValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return util.IsValidSlug(fl.Field().String())
	})
	_ = v.RegisterValidation("destination_type", func(fl validator.FieldLevel) bool {
		return content.DestinationType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("featured_status", func(fl validator.FieldLevel) bool {
		return content.FeaturedStatus(fl.Field().String()).Valid()
	})
	return &queryValidator{validate: v}
}

// Struct validates s and returns the failing parameters with a message each,
// or nil.
func (v *queryValidator) Struct(s any) map[string]string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = validationMessage(fe)
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "slug":
		return "is not a valid slug"
	case "destination_type":
		return "must be one of: region province municipality"
	case "featured_status":
		return "must be one of: none homepage top editor trending"
	case "bcp47_language_tag":
		return "is not a valid language code"
	default:
		return "is invalid"
	}
}

// queryReader reads typed query parameters, collecting parse failures.
type queryReader struct {
	values url.Values
	errs   map[string]string
}

func newQueryReader(values url.Values) *queryReader {
	return &queryReader{values: values}
}

func (q *queryReader) fail(name, msg string) {
	if q.errs == nil {
		q.errs = make(map[string]string)
	}
	q.errs[name] = msg
}

func (q *queryReader) string(name string) string {
	return strings.TrimSpace(q.values.Get(name))
}

// enum reads a case-insensitive keyword.
func (q *queryReader) enum(name string) string {
	return strings.ToLower(q.string(name))
}

func (q *queryReader) int64(name string) int64 {
	raw := q.string(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.fail(name, "must be an integer")
		return 0
	}
	return n
}

func (q *queryReader) int(name string) int {
	return int(q.int64(name))
}

// intPtr reads an optional integer; nil means absent.
func (q *queryReader) intPtr(name string) *int {
	if q.string(name) == "" {
		return nil
	}
	n := q.int(name)
	if _, failed := q.errs[name]; failed {
		return nil
	}
	return &n
}

func (q *queryReader) bool(name string) bool {
	raw := q.string(name)
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be a boolean")
		return false
	}
	return b
}

func (q *queryReader) page() pageParams {
	return pageParams{
		Fields: q.enum("fields"),
		Limit:  q.intPtr("limit"),
		Offset: q.int("offset"),
	}
}
