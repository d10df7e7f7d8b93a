package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Rzouga01/LearnHub-sub001/internal/dto"
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
)

// ApplicationValidator checks and normalises public application payloads.
// Violations are reported one at a time in form order.
type ApplicationValidator struct {
	validate *validator.Validate
}

// NewApplicationValidator builds a validator reporting json field names.
func NewApplicationValidator(validate *validator.Validate) *ApplicationValidator {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ApplicationValidator{validate: validate}
}

// Validate returns an unsaved application built from the trimmed payload.
func (v *ApplicationValidator) Validate(req dto.SubmitApplicationRequest) (*models.TrainerApplication, error) {
	req = trimSubmission(req)
	if err := v.validate.Struct(req); err != nil {
		return nil, translateValidation(err)
	}

	return &models.TrainerApplication{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              strings.ToLower(req.Email),
		Phone:              req.Phone,
		CurrentPosition:    req.CurrentPosition,
		Company:            req.Company,
		PrimaryExpertise:   req.PrimaryExpertise,
		YearsExperience:    models.ExperienceBand(req.YearsExperience),
		SecondaryExpertise: models.NormalizeTags(req.SecondaryExpertise),
		ProfessionalBio:    req.ProfessionalBio,
		TeachingExperience: req.TeachingExperience,
		PreferredFormat:    req.PreferredFormat,
		DesiredCourses:     req.DesiredCourses,
		Motivation:         req.Motivation,
		CertificationFiles: models.FileHandles{},
		PortfolioFiles:     models.FileHandles{},
	}, nil
}

func trimSubmission(req dto.SubmitApplicationRequest) dto.SubmitApplicationRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.CurrentPosition = strings.TrimSpace(req.CurrentPosition)
	req.PrimaryExpertise = strings.TrimSpace(req.PrimaryExpertise)
	req.YearsExperience = strings.TrimSpace(req.YearsExperience)
	req.ProfessionalBio = strings.TrimSpace(req.ProfessionalBio)
	req.TeachingExperience = strings.TrimSpace(req.TeachingExperience)
	req.PreferredFormat = strings.TrimSpace(req.PreferredFormat)
	req.DesiredCourses = strings.TrimSpace(req.DesiredCourses)
	req.Motivation = strings.TrimSpace(req.Motivation)
	if req.Company != nil {
		company := strings.TrimSpace(*req.Company)
		if company == "" {
			req.Company = nil
		} else {
			req.Company = &company
		}
	}
	if req.SecondaryExpertise != nil {
		tags := make([]string, len(req.SecondaryExpertise))
		for i, tag := range req.SecondaryExpertise {
			tags[i] = strings.TrimSpace(tag)
		}
		req.SecondaryExpertise = tags
	}
	return req
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	fe := verrs[0]
	field := fe.Field()
	element := false
	if idx := strings.IndexByte(field, '['); idx >= 0 {
		field = field[:idx]
		element = true
	}

	switch {
	case fe.Tag() == "required" && !element:
		return appErrors.MissingField(field)
	case fe.Tag() == "required":
		return appErrors.InvalidFormat(field, "must not contain empty values")
	case fe.Tag() == "email":
		return appErrors.InvalidFormat(field, "must be a valid email address")
	case fe.Tag() == "oneof":
		return appErrors.InvalidFormat(field, fmt.Sprintf("must be one of %s", fe.Param()))
	default:
		return appErrors.InvalidFormat(field, fe.Tag())
	}
}
