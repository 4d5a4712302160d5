package upload

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidPayload is returned when an upload body is not a well-formed entry.
var ErrInvalidPayload = errors.New("invalid entry payload")

// Answer is one submitted answer.
type Answer struct {
	Answer    json.RawMessage `json:"answer"`
	WasJumped bool            `json:"was_jumped"`
}

// BranchPayload is one repeat of a branch question.
type BranchPayload struct {
	ID         uuid.UUID
	Answers    map[string]Answer
	RawAnswers json.RawMessage
}

// Payload is a decoded entry upload.
type Payload struct {
	EntryID    uuid.UUID
	FormRef    string
	Title      string
	Answers    map[string]Answer
	RawAnswers json.RawMessage // stored unchanged
	// Branches are keyed by branch input ref, in the order the device sent them.
	Branches map[string][]BranchPayload
}

type wireEntry struct {
	EntryUUID string          `json:"entry_uuid"`
	Title     string          `json:"title"`
	Answers   json.RawMessage `json:"answers"`
}

type wireBranch struct {
	ID          string    `json:"id"`
	BranchEntry wireEntry `json:"branch_entry"`
}

type wirePayload struct {
	Data *struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			Form struct {
				Ref string `json:"ref"`
			} `json:"form"`
		} `json:"attributes"`
		Entry    *wireEntry              `json:"entry"`
		Branches map[string][]wireBranch `json:"branches"`
	} `json:"data"`
}

// DecodePayload parses an upload body.
func DecodePayload(body []byte) (*Payload, error) {
	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	data := wire.Data
	if data == nil || data.Entry == nil {
		return nil, fmt.Errorf("%w: missing data.entry", ErrInvalidPayload)
	}
	if data.Type != "" && data.Type != "entry" {
		return nil, fmt.Errorf("%w: unexpected type %q", ErrInvalidPayload, data.Type)
	}
	if data.Attributes.Form.Ref == "" {
		return nil, fmt.Errorf("%w: missing form ref", ErrInvalidPayload)
	}

	id := data.Entry.EntryUUID
	if id == "" {
		id = data.ID
	}
	entryID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	answers, raw, err := decodeAnswers(data.Entry.Answers)
	if err != nil {
		return nil, err
	}

	p := &Payload{
		EntryID:    entryID,
		FormRef:    data.Attributes.Form.Ref,
		Title:      data.Entry.Title,
		Answers:    answers,
		RawAnswers: raw,
		Branches:   make(map[string][]BranchPayload, len(data.Branches)),
	}
	for ref, list := range data.Branches {
		for _, b := range list {
			id := b.BranchEntry.EntryUUID
			if id == "" {
				id = b.ID
			}
			branchID, err := parseID(id)
			if err != nil {
				return nil, fmt.Errorf("branch %s: %w", ref, err)
			}
			answers, raw, err := decodeAnswers(b.BranchEntry.Answers)
			if err != nil {
				return nil, fmt.Errorf("branch %s: %w", ref, err)
			}
			p.Branches[ref] = append(p.Branches[ref], BranchPayload{ID: branchID, Answers: answers, RawAnswers: raw})
		}
	}
	return p, nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: missing entry uuid", ErrInvalidPayload)
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad entry uuid %q", ErrInvalidPayload, s)
	}
	return id, nil
}

func decodeAnswers(raw json.RawMessage) (map[string]Answer, json.RawMessage, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]Answer{}, json.RawMessage(`{}`), nil
	}
	var answers map[string]Answer
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, nil, fmt.Errorf("%w: answers: %v", ErrInvalidPayload, err)
	}
	return answers, raw, nil
}
