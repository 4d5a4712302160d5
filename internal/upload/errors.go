package upload

// Code is an EpiCollect5 response code.
type Code string

const (
	CodeProjectNotFound  Code = "ec5_11"
	CodeFormNotFound     Code = "ec5_15"
	CodeRequired         Code = "ec5_21"
	CodeNotUnique        Code = "ec5_22"
	CodeInvalidPayload   Code = "ec5_26"
	CodeInvalidValue     Code = "ec5_29"
	CodeBranchNotFound   Code = "ec5_62"
	CodeInvalidDatetime  Code = "ec5_79"
	CodeServerError      Code = "ec5_103"
	CodeUploadSuccessful Code = "ec5_237"
)

var titles = map[Code]string{
	CodeProjectNotFound:  "Project does not exist.",
	CodeFormNotFound:     "Form does not exist.",
	CodeRequired:         "Required field is missing.",
	CodeNotUnique:        "Answer is not unique.",
	CodeInvalidPayload:   "Entry payload is invalid.",
	CodeInvalidValue:     "Value invalid.",
	CodeBranchNotFound:   "Branch does not exist.",
	CodeInvalidDatetime:  "Date/time does not match the configured format.",
	CodeServerError:      "Server error.",
	CodeUploadSuccessful: "Entry successfully uploaded.",
}

// Title returns the user-facing message of c.
func (c Code) Title() string {
	return titles[c]
}

// APIError is one element of the JSON error envelope.
type APIError struct {
	Code   Code   `json:"code"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// NewAPIError builds the error for code raised by source, usually an input ref.
func NewAPIError(code Code, source string) *APIError {
	return &APIError{Code: code, Title: code.Title(), Source: source}
}

// ErrorEnvelope is the body of every failed upload response.
type ErrorEnvelope struct {
	Errors []APIError `json:"errors"`
}

// Message is the body of a successful response.
type Message struct {
	Code  Code   `json:"code"`
	Title string `json:"title"`
}

// DataEnvelope wraps a successful response.
type DataEnvelope struct {
	Data Message `json:"data"`
}
