package services

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/server/auth"
	"github.com/dmitrijs2005/consejo/internal/server/models"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	MinAnswerLength   = 2

	// bcrypt refuses input beyond 72 bytes. The limit applies to passwords
	// and to normalized security answers.
	maxSecretBytes = 72
)

// securityQuestions is the fixed set of questions an account may choose.
var securityQuestions = []string{
	models.DefaultSecurityQuestion,
	"¿En qué ciudad naciste?",
	"¿Cuál es el nombre de tu abuela materna?",
	"¿Cuál fue tu primer vehículo?",
	"¿Cuál es tu comida favorita?",
	"¿Cómo se llamaba tu escuela primaria?",
}

// SecurityQuestions returns a copy of the allowed security questions in
// display order. The first one is the system default.
func SecurityQuestions() []string {
	return slices.Clone(securityQuestions)
}

// IsSecurityQuestion reports whether q is one of the allowed questions.
// The comparison is exact.
func IsSecurityQuestion(q string) bool {
	return slices.Contains(securityQuestions, q)
}

// SignUpInput is what the registration form submits.
type SignUpInput struct {
	Username         string
	Password         string
	ConfirmPassword  string
	UnitName         string
	SecurityQuestion string
	SecurityAnswer   string
}

func (in SignUpInput) validate() error {
	var errs []*common.ValidationError
	if e := checkUsername(in.Username); e != nil {
		errs = append(errs, e)
	}
	errs = append(errs, checkNewPassword("password", in.Password, in.ConfirmPassword)...)
	errs = append(errs, checkSecurityQA(in.SecurityQuestion, in.SecurityAnswer)...)
	return common.JoinValidation(errs)
}

func checkUsername(username string) *common.ValidationError {
	if strings.TrimSpace(username) == "" {
		return common.NewValidationError("username", "required")
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return common.NewValidationError("username", "must be at least 3 characters")
	}
	return nil
}

func checkPassword(field, password string) *common.ValidationError {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return common.NewValidationError(field, "must be at least 6 characters")
	}
	if len(password) > maxSecretBytes {
		return common.NewValidationError(field, "must be at most 72 bytes")
	}
	return nil
}

// checkNewPassword validates a new password together with its confirmation.
func checkNewPassword(field, password, confirm string) []*common.ValidationError {
	var errs []*common.ValidationError
	if e := checkPassword(field, password); e != nil {
		errs = append(errs, e)
	}
	if password != confirm {
		errs = append(errs, common.NewValidationError("confirm_password", "does not match"))
	}
	return errs
}

func checkSecurityQA(question, answer string) []*common.ValidationError {
	var errs []*common.ValidationError
	if strings.TrimSpace(question) == "" {
		errs = append(errs, common.NewValidationError("security_question", "required"))
	} else if !IsSecurityQuestion(question) {
		errs = append(errs, common.NewValidationError("security_question", "not an allowed question"))
	}
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < MinAnswerLength {
		errs = append(errs, common.NewValidationError("security_answer", "must be at least 2 characters"))
	} else if len(auth.NormalizeAnswer(answer)) > maxSecretBytes {
		errs = append(errs, common.NewValidationError("security_answer", "must be at most 72 bytes"))
	}
	return errs
}
