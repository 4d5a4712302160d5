package schema

// Descriptor is an answerable input of a form, flattened out of any groups.
type Descriptor struct {
	Ref        string
	Type       InputType
	Uniqueness Uniqueness
	Format     DatetimeFormat // set for date and time inputs only
	Required   bool
	Input      Input
}

// Walk lists the answerable inputs of form in declaration order.
// Group children are flattened in place of the group. Branch inputs are not
// entered: branch entries are validated against BranchInput.Form on their own.
func Walk(form *Form) []Descriptor {
	if form == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(form.Inputs))
	return walk(form.Inputs, out)
}

func walk(inputs []Input, out []Descriptor) []Descriptor {
	for _, in := range inputs {
		switch v := in.(type) {
		case *GroupInput:
			out = walk(v.Inputs, out)
		case *BranchInput, *ReadmeInput:
			// not answerable at this level
		case *DateTimeInput:
			out = append(out, Descriptor{
				Ref:        v.Ref,
				Type:       v.Type,
				Uniqueness: v.Uniqueness,
				Format:     v.Format,
				Required:   v.Required,
				Input:      v,
			})
		case *FieldInput:
			out = append(out, Descriptor{
				Ref:        v.Ref,
				Type:       v.Type,
				Uniqueness: v.Uniqueness,
				Required:   v.Required,
				Input:      v,
			})
		case *LocationInput:
			out = append(out, Descriptor{Ref: v.Ref, Type: InputTypeLocation, Uniqueness: UniquenessNone, Required: v.Required, Input: v})
		case *ChoiceInput:
			out = append(out, Descriptor{Ref: v.Ref, Type: v.Type, Uniqueness: UniquenessNone, Required: v.Required, Input: v})
		case *MediaInput:
			out = append(out, Descriptor{Ref: v.Ref, Type: v.Type, Uniqueness: UniquenessNone, Required: v.Required, Input: v})
		}
	}
	return out
}

// Branches lists the branch inputs of form in declaration order, including
// branches placed inside groups.
func Branches(form *Form) []*BranchInput {
	if form == nil {
		return nil
	}
	return branches(form.Inputs, nil)
}

func branches(inputs []Input, out []*BranchInput) []*BranchInput {
	for _, in := range inputs {
		switch v := in.(type) {
		case *GroupInput:
			out = branches(v.Inputs, out)
		case *BranchInput:
			out = append(out, v)
		}
	}
	return out
}

// Refs returns the ref of every input that may appear among the answers of
// form: answerable inputs plus readme, group and branch inputs. The inputs
// of a branch belong to its branch entries and are not included.
func Refs(form *Form) map[string]bool {
	out := make(map[string]bool)
	if form == nil {
		return out
	}
	collectRefs(form.Inputs, out)
	return out
}

func collectRefs(inputs []Input, out map[string]bool) {
	for _, in := range inputs {
		out[in.InputRef()] = true
		if g, ok := in.(*GroupInput); ok {
			collectRefs(g.Inputs, out)
		}
	}
}
