package schema

// InputType is the declared type of a form input.
type InputType string

const (
	InputTypeText           InputType = "text"
	InputTypeTextarea       InputType = "textarea"
	InputTypePhone          InputType = "phone"
	InputTypeBarcode        InputType = "barcode"
	InputTypeInteger        InputType = "integer"
	InputTypeDecimal        InputType = "decimal"
	InputTypeDate           InputType = "date"
	InputTypeTime           InputType = "time"
	InputTypeLocation       InputType = "location"
	InputTypeRadio          InputType = "radio"
	InputTypeDropdown       InputType = "dropdown"
	InputTypeSearchSingle   InputType = "searchsingle"
	InputTypeCheckbox       InputType = "checkbox"
	InputTypeSearchMultiple InputType = "searchmultiple"
	InputTypePhoto          InputType = "photo"
	InputTypeAudio          InputType = "audio"
	InputTypeVideo          InputType = "video"
	InputTypeReadme         InputType = "readme"
	InputTypeGroup          InputType = "group"
	InputTypeBranch         InputType = "branch"
)

// IsMultipleChoice reports whether answers of this type are a set of answer refs.
func (t InputType) IsMultipleChoice() bool {
	return t == InputTypeCheckbox || t == InputTypeSearchMultiple
}

// Comparable reports whether answers of this type may carry a uniqueness constraint.
func (t InputType) Comparable() bool {
	switch t {
	case InputTypeText, InputTypeTextarea, InputTypePhone, InputTypeBarcode,
		InputTypeInteger, InputTypeDecimal, InputTypeDate, InputTypeTime:
		return true
	}
	return false
}

// Uniqueness is the scope within which an answer must not repeat.
type Uniqueness string

const (
	UniquenessNone    Uniqueness = "none"
	UniquenessForm    Uniqueness = "form"    // unique among submissions of the same form ref
	UniquenessProject Uniqueness = "project" // unique across every form of the project
)

// Definition is a decoded project definition.
type Definition struct {
	Forms []*Form
}

// Form returns the form with the given ref, or nil.
func (d *Definition) Form(ref string) *Form {
	if d == nil {
		return nil
	}
	for _, f := range d.Forms {
		if f.Ref == ref {
			return f
		}
	}
	return nil
}

// Form is one form of a project, or the sub-form of a branch input.
type Form struct {
	Ref    string
	Name   string
	Inputs []Input
}

// Input is a node of a form schema. The set of implementations is closed:
// FieldInput, DateTimeInput, LocationInput, ChoiceInput, MediaInput,
// ReadmeInput, GroupInput and BranchInput.
type Input interface {
	InputRef() string
	InputType() InputType
	isInput()
}

// FieldInput is a scalar question: text, textarea, phone, barcode, integer or decimal.
type FieldInput struct {
	Ref        string
	Type       InputType
	Question   string
	Required   bool
	Uniqueness Uniqueness
}

func (i *FieldInput) InputRef() string     { return i.Ref }
func (i *FieldInput) InputType() InputType { return i.Type }
func (*FieldInput) isInput()               {}

// DateTimeInput is a date or time question rendered with a fixed format.
type DateTimeInput struct {
	FieldInput
	Format DatetimeFormat
}

// LocationInput is a GPS question answered with latitude, longitude and accuracy.
type LocationInput struct {
	Ref      string
	Question string
	Required bool
}

func (i *LocationInput) InputRef() string   { return i.Ref }
func (*LocationInput) InputType() InputType { return InputTypeLocation }
func (*LocationInput) isInput()             {}

// PossibleAnswer is one option of a choice question.
type PossibleAnswer struct {
	AnswerRef string
	Answer    string
}

// ChoiceInput is a single or multiple choice question.
type ChoiceInput struct {
	Ref             string
	Type            InputType
	Question        string
	Required        bool
	PossibleAnswers []PossibleAnswer
}

func (i *ChoiceInput) InputRef() string     { return i.Ref }
func (i *ChoiceInput) InputType() InputType { return i.Type }
func (*ChoiceInput) isInput()               {}

// HasAnswerRef reports whether ref is one of the declared options.
func (i *ChoiceInput) HasAnswerRef(ref string) bool {
	for _, p := range i.PossibleAnswers {
		if p.AnswerRef == ref {
			return true
		}
	}
	return false
}

// MediaInput is a photo, audio or video question; the answer is a file name.
type MediaInput struct {
	Ref      string
	Type     InputType
	Required bool
}

func (i *MediaInput) InputRef() string     { return i.Ref }
func (i *MediaInput) InputType() InputType { return i.Type }
func (*MediaInput) isInput()               {}

// ReadmeInput is informational text and never receives an answer.
type ReadmeInput struct {
	Ref string
}

func (i *ReadmeInput) InputRef() string   { return i.Ref }
func (*ReadmeInput) InputType() InputType { return InputTypeReadme }
func (*ReadmeInput) isInput()             {}

// GroupInput shows its children on a single screen. Only the children are answerable.
type GroupInput struct {
	Ref    string
	Inputs []Input
}

func (i *GroupInput) InputRef() string   { return i.Ref }
func (*GroupInput) InputType() InputType { return InputTypeGroup }
func (*GroupInput) isInput()             {}

// BranchInput owns a repeatable sub-form; each repeat is uploaded as a branch entry.
type BranchInput struct {
	Ref      string
	Question string
	Inputs   []Input
}

func (i *BranchInput) InputRef() string   { return i.Ref }
func (*BranchInput) InputType() InputType { return InputTypeBranch }
func (*BranchInput) isInput()             {}

// Form returns the branch sub-form. Its ref is the branch input ref, which is
// also the form ref that branch entries are stored under.
func (i *BranchInput) Form() *Form {
	return &Form{Ref: i.Ref, Name: i.Question, Inputs: i.Inputs}
}
