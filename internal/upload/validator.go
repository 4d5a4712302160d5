package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"

	"github.com/epicollect5/epicollect5-server-sub003/internal/answer"
	"github.com/epicollect5/epicollect5-server-sub003/internal/entry"
	"github.com/epicollect5/epicollect5-server-sub003/internal/metrics"
	"github.com/epicollect5/epicollect5-server-sub003/internal/schema"
	"github.com/epicollect5/epicollect5-server-sub003/internal/uniqueness"
)

// ConflictChecker looks up stored answers that an uploaded answer would duplicate.
type ConflictChecker interface {
	CheckConflict(ctx context.Context, q uniqueness.Query) (*uniqueness.Conflict, error)
}

// Persister stores accepted uploads. A *entry.ConstraintViolation means a
// concurrent upload stored the same unique answer first.
type Persister interface {
	Save(ctx context.Context, sub *entry.Submission) error
}

// Result is the outcome of validating an upload: either OK, or exactly one error.
type Result struct {
	OK         bool
	FirstError *APIError
}

func accepted() *Result {
	return &Result{OK: true}
}

func rejected(code Code, source string) *Result {
	return &Result{FirstError: NewAPIError(code, source)}
}

// Validator checks entry uploads against their form definition and the stored entries.
type Validator struct {
	checker   ConflictChecker
	persister Persister
}

// NewValidator creates a Validator
func NewValidator(checker ConflictChecker, persister Persister) *Validator {
	return &Validator{checker: checker, persister: persister}
}

// Validate checks payload against form without storing anything. It stops at
// the first failure in declaration order: the parent's answers first, then
// each branch input's entries. The returned error is reserved for faults
// that are not the uploader's, such as an unreadable schema or a failed lookup.
func (v *Validator) Validate(ctx context.Context, projectID uuid.UUID, form *schema.Form, payload *Payload) (*Result, error) {
	res, _, err := v.validate(ctx, projectID, form, payload)
	return res, err
}

// Upload validates payload against its form in def and stores it. A
// uniqueness violation found while storing is reported exactly like one
// found by validation.
func (v *Validator) Upload(ctx context.Context, projectID uuid.UUID, def *schema.Definition, payload *Payload) (*Result, error) {
	form := def.Form(payload.FormRef)
	if form == nil {
		return rejected(CodeFormNotFound, payload.FormRef), nil
	}

	res, sub, err := v.validate(ctx, projectID, form, payload)
	if err != nil || !res.OK {
		return res, err
	}

	if err := v.persister.Save(ctx, sub); err != nil {
		var violation *entry.ConstraintViolation
		if errors.As(err, &violation) {
			metrics.UniquenessConflictsTotal.WithLabelValues(string(violation.Scope), metrics.StageStorage).Inc()
			slog.Warn("unique answer taken by a concurrent upload",
				"entry_id", payload.EntryID,
				"input_ref", violation.InputRef,
			)
			return rejected(CodeNotUnique, violation.InputRef), nil
		}
		var idConflict *entry.IDConflict
		if errors.As(err, &idConflict) {
			slog.Warn("upload reuses a uuid owned elsewhere",
				"entry_id", payload.EntryID,
				"conflicting_id", idConflict.ID,
				"error", err,
			)
			return rejected(CodeInvalidPayload, idConflict.ID.String()), nil
		}
		return nil, fmt.Errorf("failed to save entry %s: %w", payload.EntryID, err)
	}

	slog.Info("entry uploaded",
		"entry_id", payload.EntryID,
		"form_ref", form.Ref,
		"branch_entries", len(sub.Branches),
	)
	return accepted(), nil
}

func (v *Validator) validate(ctx context.Context, projectID uuid.UUID, form *schema.Form, payload *Payload) (*Result, *entry.Submission, error) {
	if form == nil || payload == nil {
		return nil, nil, fmt.Errorf("form and payload are required")
	}

	r := &run{
		checker:   v.checker,
		projectID: projectID,
		entryID:   payload.EntryID,
		taken:     make(map[takenKey]struct{}),
	}

	if apiErr, err := r.answers(ctx, form, payload.Answers); err != nil || apiErr != nil {
		return result(apiErr), nil, err
	}

	branchInputs := schema.Branches(form)
	known := lo.SliceToMap(branchInputs, func(b *schema.BranchInput) (string, bool) { return b.Ref, true })
	sent := lo.Keys(payload.Branches)
	sort.Strings(sent)
	if unknown, found := lo.Find(sent, func(ref string) bool { return !known[ref] }); found {
		return rejected(CodeBranchNotFound, unknown), nil, nil
	}

	sub := &entry.Submission{
		Entry: entry.Entry{
			BaseModel: entry.BaseModel{ID: payload.EntryID},
			ProjectID: projectID,
			FormRef:   form.Ref,
			Title:     payload.Title,
			Answers:   datatypes.JSON(payload.RawAnswers),
		},
	}

	seen := map[uuid.UUID]bool{payload.EntryID: true}
	for _, b := range branchInputs {
		subForm := b.Form()
		for _, bp := range payload.Branches[b.Ref] {
			if seen[bp.ID] {
				return rejected(CodeInvalidPayload, bp.ID.String()), nil, nil
			}
			seen[bp.ID] = true
			if apiErr, err := r.answers(ctx, subForm, bp.Answers); err != nil || apiErr != nil {
				return result(apiErr), nil, err
			}
			sub.Branches = append(sub.Branches, entry.BranchEntry{
				BaseModel:     entry.BaseModel{ID: bp.ID},
				ProjectID:     projectID,
				FormRef:       subForm.Ref,
				OwnerEntryID:  payload.EntryID,
				OwnerInputRef: b.Ref,
				Answers:       datatypes.JSON(bp.RawAnswers),
			})
		}
	}

	sub.UniqueAnswers = r.rows
	return accepted(), sub, nil
}

func result(apiErr *APIError) *Result {
	if apiErr == nil {
		return nil
	}
	return &Result{FirstError: apiErr}
}

type takenKey struct {
	scope    schema.Uniqueness
	scopeRef string
	inputRef string
	value    string
}

// run holds the state of one upload: the unique answers accepted so far, so
// that two answers within the same upload cannot share a value either.
type run struct {
	checker   ConflictChecker
	projectID uuid.UUID
	entryID   uuid.UUID
	taken     map[takenKey]struct{}
	rows      []entry.UniqueAnswer
}

func (r *run) answers(ctx context.Context, form *schema.Form, answers map[string]Answer) (*APIError, error) {
	for _, desc := range schema.Walk(form) {
		submitted := answers[desc.Ref]

		value := answer.Empty
		if !submitted.WasJumped {
			v, err := answer.Normalize(desc, submitted.Answer)
			switch {
			case errors.Is(err, answer.ErrInvalidDatetime):
				return NewAPIError(CodeInvalidDatetime, desc.Ref), nil
			case errors.Is(err, answer.ErrInvalidValue):
				return NewAPIError(CodeInvalidValue, desc.Ref), nil
			case err != nil:
				return nil, fmt.Errorf("form %s: %w", form.Ref, err)
			}
			value = v
		}

		if value.IsEmpty() {
			if desc.Required && !submitted.WasJumped {
				return NewAPIError(CodeRequired, desc.Ref), nil
			}
			continue
		}
		if desc.Uniqueness == "" || desc.Uniqueness == schema.UniquenessNone {
			continue
		}

		key := takenKey{
			scope:    desc.Uniqueness,
			scopeRef: uniqueness.ScopeRef(desc.Uniqueness, form.Ref),
			inputRef: desc.Ref,
			value:    value.Key,
		}
		if _, dup := r.taken[key]; dup {
			metrics.UniquenessConflictsTotal.WithLabelValues(string(desc.Uniqueness), metrics.StagePayload).Inc()
			return NewAPIError(CodeNotUnique, desc.Ref), nil
		}

		conflict, err := r.checker.CheckConflict(ctx, uniqueness.Query{
			ProjectID:      r.projectID,
			FormRef:        form.Ref,
			InputRef:       desc.Ref,
			Scope:          desc.Uniqueness,
			Value:          value,
			ExcludeEntryID: r.entryID,
		})
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			metrics.UniquenessConflictsTotal.WithLabelValues(string(desc.Uniqueness), metrics.StagePrecheck).Inc()
			slog.Debug("answer is not unique",
				"input_ref", desc.Ref,
				"scope", desc.Uniqueness,
				"conflicting_entry_id", conflict.EntryID,
			)
			return NewAPIError(CodeNotUnique, desc.Ref), nil
		}

		r.taken[key] = struct{}{}
		r.rows = append(r.rows, entry.UniqueAnswer{
			ProjectID: r.projectID,
			Scope:     desc.Uniqueness,
			ScopeRef:  key.scopeRef,
			InputRef:  desc.Ref,
			Value:     value.Key,
			FormRef:   form.Ref,
			EntryID:   r.entryID,
		})
	}

	// answers must belong to this form; stray refs come last, in ref order
	known := schema.Refs(form)
	stray := lo.Filter(lo.Keys(answers), func(ref string, _ int) bool { return !known[ref] })
	if len(stray) > 0 {
		sort.Strings(stray)
		return NewAPIError(CodeInvalidValue, stray[0]), nil
	}
	return nil, nil
}
