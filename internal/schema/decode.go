package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDefinition is returned when a project definition breaks a schema rule.
// Definitions are validated by the formbuilder before use, so callers treat it as fatal.
var ErrInvalidDefinition = errors.New("invalid project definition")

type rawDefinition struct {
	Project *struct {
		Forms []rawForm `json:"forms"`
	} `json:"project,omitempty"`
	Forms []rawForm `json:"forms"`
}

type rawForm struct {
	Ref    string     `json:"ref"`
	Name   string     `json:"name"`
	Inputs []rawInput `json:"inputs"`
}

type rawPossibleAnswer struct {
	AnswerRef string `json:"answer_ref"`
	Answer    string `json:"answer"`
}

type rawInput struct {
	Ref             string              `json:"ref"`
	Type            InputType           `json:"type"`
	Question        string              `json:"question"`
	IsRequired      bool                `json:"is_required"`
	Uniqueness      string              `json:"uniqueness"`
	DatetimeFormat  *string             `json:"datetime_format"`
	PossibleAnswers []rawPossibleAnswer `json:"possible_answers"`
	Group           []rawInput          `json:"group"`
	Branch          []rawInput          `json:"branch"`
}

// ParseDefinition decodes a formbuilder project definition into typed inputs.
// Both {"forms":[...]} and the {"project":{"forms":[...]}} envelope are accepted.
func ParseDefinition(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	forms := raw.Forms
	if raw.Project != nil && len(raw.Project.Forms) > 0 {
		forms = raw.Project.Forms
	}
	if len(forms) == 0 {
		return nil, fmt.Errorf("%w: no forms", ErrInvalidDefinition)
	}

	d := &decoder{seen: make(map[string]struct{})}
	def := &Definition{Forms: make([]*Form, 0, len(forms))}
	for i, rf := range forms {
		if rf.Ref == "" {
			return nil, fmt.Errorf("%w: form %d has no ref", ErrInvalidDefinition, i)
		}
		if err := d.claim(rf.Ref); err != nil {
			return nil, err
		}
		inputs, err := d.inputs(rf.Inputs, false)
		if err != nil {
			return nil, fmt.Errorf("form %s: %w", rf.Ref, err)
		}
		def.Forms = append(def.Forms, &Form{Ref: rf.Ref, Name: rf.Name, Inputs: inputs})
	}
	return def, nil
}

type decoder struct {
	seen map[string]struct{}
}

func (d *decoder) claim(ref string) error {
	if _, dup := d.seen[ref]; dup {
		return fmt.Errorf("%w: duplicate ref %q", ErrInvalidDefinition, ref)
	}
	d.seen[ref] = struct{}{}
	return nil
}

func (d *decoder) inputs(raws []rawInput, inBranch bool) ([]Input, error) {
	out := make([]Input, 0, len(raws))
	for _, r := range raws {
		in, err := d.input(r, inBranch)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (d *decoder) input(r rawInput, inBranch bool) (Input, error) {
	if r.Ref == "" {
		return nil, fmt.Errorf("%w: input of type %q has no ref", ErrInvalidDefinition, r.Type)
	}
	if err := d.claim(r.Ref); err != nil {
		return nil, err
	}

	uniqueness, err := parseUniqueness(r.Uniqueness)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", r.Ref, err)
	}
	if uniqueness != UniquenessNone && !r.Type.Comparable() {
		return nil, fmt.Errorf("%w: input %s of type %s cannot declare uniqueness %q",
			ErrInvalidDefinition, r.Ref, r.Type, uniqueness)
	}

	field := FieldInput{
		Ref:        r.Ref,
		Type:       r.Type,
		Question:   r.Question,
		Required:   r.IsRequired,
		Uniqueness: uniqueness,
	}

	switch r.Type {
	case InputTypeText, InputTypeTextarea, InputTypePhone, InputTypeBarcode,
		InputTypeInteger, InputTypeDecimal:
		return &field, nil

	case InputTypeDate, InputTypeTime:
		if r.DatetimeFormat == nil {
			return nil, fmt.Errorf("%w: input %s has no datetime_format", ErrInvalidDefinition, r.Ref)
		}
		format := DatetimeFormat(*r.DatetimeFormat)
		if !format.ValidFor(r.Type) {
			return nil, fmt.Errorf("%w: input %s has unsupported %s format %q",
				ErrInvalidDefinition, r.Ref, r.Type, format)
		}
		return &DateTimeInput{FieldInput: field, Format: format}, nil

	case InputTypeLocation:
		return &LocationInput{Ref: r.Ref, Question: r.Question, Required: r.IsRequired}, nil

	case InputTypeRadio, InputTypeDropdown, InputTypeSearchSingle,
		InputTypeCheckbox, InputTypeSearchMultiple:
		possibles := make([]PossibleAnswer, 0, len(r.PossibleAnswers))
		for _, p := range r.PossibleAnswers {
			possibles = append(possibles, PossibleAnswer{AnswerRef: p.AnswerRef, Answer: p.Answer})
		}
		return &ChoiceInput{
			Ref:             r.Ref,
			Type:            r.Type,
			Question:        r.Question,
			Required:        r.IsRequired,
			PossibleAnswers: possibles,
		}, nil

	case InputTypePhoto, InputTypeAudio, InputTypeVideo:
		return &MediaInput{Ref: r.Ref, Type: r.Type, Required: r.IsRequired}, nil

	case InputTypeReadme:
		return &ReadmeInput{Ref: r.Ref}, nil

	case InputTypeGroup:
		children, err := d.inputs(r.Group, inBranch)
		if err != nil {
			return nil, err
		}
		return &GroupInput{Ref: r.Ref, Inputs: children}, nil

	case InputTypeBranch:
		if inBranch {
			return nil, fmt.Errorf("%w: branch %s is nested in another branch", ErrInvalidDefinition, r.Ref)
		}
		children, err := d.inputs(r.Branch, true)
		if err != nil {
			return nil, err
		}
		return &BranchInput{Ref: r.Ref, Question: r.Question, Inputs: children}, nil
	}

	return nil, fmt.Errorf("%w: input %s has unknown type %q", ErrInvalidDefinition, r.Ref, r.Type)
}

func parseUniqueness(s string) (Uniqueness, error) {
	switch s {
	case "", string(UniquenessNone):
		return UniquenessNone, nil
	case string(UniquenessForm), "hierarchy", "branch":
		// hierarchy and branch are the legacy names of form scope
		return UniquenessForm, nil
	case string(UniquenessProject):
		return UniquenessProject, nil
	}
	return "", fmt.Errorf("%w: unknown uniqueness %q", ErrInvalidDefinition, s)
}
