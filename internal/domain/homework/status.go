package homework

import (
	"fmt"
)

// Status is a homework review state reported by the API.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

// Record field names.
const (
	FieldHomeworks    = "homeworks"
	FieldCurrentDate  = "current_date"
	FieldHomeworkName = "homework_name"
	FieldStatus       = "status"
)

// verdicts maps every known status to the text sent to the student.
var verdicts = map[Status]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Verdict returns the human-readable verdict for s.
func (s Status) Verdict() (string, bool) {
	v, ok := verdicts[s]
	return v, ok
}

// IsKnown reports whether s is present in the verdict table.
func (s Status) IsKnown() bool {
	_, ok := verdicts[s]
	return ok
}

// StatusChangedMessage formats the notification for a homework whose review
// state changed.
func StatusChangedMessage(name, verdict string) string {
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", name, verdict)
}

// ParseStatus turns a single raw homework record into the verdict message.
func ParseStatus(record any) (string, error) {
	fields, ok := record.(map[string]any)
	if !ok {
		return "", &SchemaError{Field: "homework", Reason: fmt.Sprintf("expected object, got %s", typeName(record))}
	}

	for _, key := range []string{FieldHomeworkName, FieldStatus} {
		if _, ok := fields[key]; !ok {
			return "", &SchemaError{Field: key, Reason: "missing key"}
		}
	}

	name, ok := fields[FieldHomeworkName].(string)
	if !ok {
		return "", &SchemaError{Field: FieldHomeworkName, Reason: "expected string"}
	}
	raw, ok := fields[FieldStatus].(string)
	if !ok {
		return "", &UnknownStatusError{Status: fmt.Sprint(fields[FieldStatus])}
	}

	verdict, ok := Status(raw).Verdict()
	if !ok {
		return "", &UnknownStatusError{Status: raw}
	}

	return StatusChangedMessage(name, verdict), nil
}
