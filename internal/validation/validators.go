package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/benvon/taskflow/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

func init() {
	Validate = validator.New()

	// Report json field names in validation errors
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Register custom validators for enums
	if err := Validate.RegisterValidation("task_priority", validateTaskPriority); err != nil {
		panic(fmt.Sprintf("failed to register task_priority validator: %v", err))
	}
	if err := Validate.RegisterValidation("task_status", validateTaskStatus); err != nil {
		panic(fmt.Sprintf("failed to register task_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("username", validateUsername); err != nil {
		panic(fmt.Sprintf("failed to register username validator: %v", err))
	}
}

func validateTaskPriority(fl validator.FieldLevel) bool {
	return models.TaskPriority(fl.Field().String()).Valid()
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return models.TaskStatus(fl.Field().String()).Valid()
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// PriorityValues lists the legal priorities as "low, medium, high, urgent"
func PriorityValues() string {
	values := make([]string, len(models.TaskPriorities))
	for i, p := range models.TaskPriorities {
		values[i] = string(p)
	}
	return strings.Join(values, ", ")
}

// StatusValues lists the legal statuses as "todo, in_progress, done, cancelled"
func StatusValues() string {
	values := make([]string, len(models.TaskStatuses))
	for i, s := range models.TaskStatuses {
		values[i] = string(s)
	}
	return strings.Join(values, ", ")
}

// ValidateTaskPriority validates a TaskPriority string value
func ValidateTaskPriority(value string) error {
	if !models.TaskPriority(value).Valid() {
		return fmt.Errorf("invalid priority %q (must be one of: %s)", value, PriorityValues())
	}
	return nil
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	if !models.TaskStatus(value).Valid() {
		return fmt.Errorf("invalid status %q (must be one of: %s)", value, StatusValues())
	}
	return nil
}

// ValidateTitle sanitizes a task title and checks its length in characters
func ValidateTitle(title string) (string, error) {
	title = SanitizeText(title)
	if title == "" {
		return "", fmt.Errorf("title is required")
	}
	if n := len([]rune(title)); n > models.MaxTaskTitleLength {
		return "", fmt.Errorf("title must be at most %d characters (got %d)", models.MaxTaskTitleLength, n)
	}
	return title, nil
}

// ValidateDescription sanitizes a task description and checks its length in characters
func ValidateDescription(description string) (string, error) {
	description = SanitizeText(description)
	if n := len([]rune(description)); n > models.MaxTaskDescriptionLength {
		return "", fmt.Errorf("description must be at most %d characters (got %d)", models.MaxTaskDescriptionLength, n)
	}
	return description, nil
}

// FormatError turns validator errors into one readable message
func FormatError(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		case "task_priority":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, PriorityValues()))
		case "task_status":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, StatusValues()))
		case "username":
			msgs = append(msgs, fmt.Sprintf("%s may only contain letters, digits, '_', '-' and '.'", field))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
