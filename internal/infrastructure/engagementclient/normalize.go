package engagementclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mikiasgoitom/articulate-engage/internal/domain/entity"
)

// responseShape tags the layout the engagement service replied with.
type responseShape int

const (
	shapeEmpty responseShape = iota
	shapeFlat
	shapeNested
	shapeEnveloped
)

func (s responseShape) String() string {
	switch s {
	case shapeFlat:
		return "flat"
	case shapeNested:
		return "nested"
	case shapeEnveloped:
		return "enveloped"
	default:
		return "empty"
	}
}

// wireGroup is a set of counters and viewer flags at one level of a response body.
type wireGroup struct {
	entity.MetricsPatch
	entity.InteractionPatch
}

type wireBody struct {
	wireGroup
	Active     *bool      `json:"active"`
	Metrics    *wireGroup `json:"metrics"`
	Engagement *wireGroup `json:"engagement"`
	Data       *wireBody  `json:"data"`
}

func (b *wireBody) shape() responseShape {
	switch {
	case b.Data != nil:
		return shapeEnveloped
	case b.Metrics != nil || b.Engagement != nil:
		return shapeNested
	default:
		return shapeFlat
	}
}

// flatten folds every level into a single group. Nested objects win over flat fields,
// and an envelope's payload wins over fields beside it.
func (b *wireBody) flatten() (group wireGroup, active *bool) {
	switch b.shape() {
	case shapeEnveloped:
		group, active = b.Data.flatten()
		fillGroup(&group, b.wireGroup)
		if active == nil {
			active = b.Active
		}
		return group, active
	case shapeNested:
		if b.Metrics != nil {
			group = *b.Metrics
		}
		if b.Engagement != nil {
			fillGroup(&group, *b.Engagement)
		}
		fillGroup(&group, b.wireGroup)
		return group, b.Active
	default:
		return b.wireGroup, b.Active
	}
}

func fillGroup(dst *wireGroup, src wireGroup) {
	dst.MetricsPatch.FillFrom(src.MetricsPatch)
	for _, a := range entity.AllActions {
		if dst.InteractionPatch.Get(a) == nil {
			if v := src.InteractionPatch.Get(a); v != nil {
				dst.InteractionPatch.Set(a, *v)
			}
		}
	}
}

func decodeBody(body []byte) (*wireBody, responseShape, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return &wireBody{}, shapeEmpty, nil
	}
	var wb wireBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, shapeEmpty, fmt.Errorf("decode engagement response: %w", err)
	}
	return &wb, wb.shape(), nil
}

// normalizeResult converts any supported response layout into the canonical EngagementResult.
func normalizeResult(action entity.ActionType, body []byte) (*entity.EngagementResult, error) {
	wb, shape, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	result := &entity.EngagementResult{Action: action}
	if shape == shapeEmpty {
		return result, nil
	}
	group, active := wb.flatten()
	result.Metrics = group.MetricsPatch
	if action.IsToggle() {
		if v := group.InteractionPatch.Get(action); v != nil {
			result.Active = v
		} else {
			result.Active = active
		}
	}
	return result, nil
}

// normalizeSnapshot converts a subject read into a SubjectSnapshot. Omitted fields read as
// zero and are listed as unreported so reconciliation leaves the cached values alone.
func normalizeSnapshot(subjectID string, body []byte) (*entity.SubjectSnapshot, error) {
	wb, _, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	group, _ := wb.flatten()
	snap := &entity.SubjectSnapshot{SubjectID: subjectID}
	group.MetricsPatch.ApplyTo(&snap.Metrics)
	group.InteractionPatch.ApplyTo(&snap.InteractionState)
	for _, a := range entity.AllActions {
		if group.InteractionPatch.Get(a) == nil {
			snap.UnreportedFlags = append(snap.UnreportedFlags, a)
		}
		if group.MetricsPatch.Get(a) == nil {
			snap.UnreportedCounts = append(snap.UnreportedCounts, a.CountField())
		}
	}
	if group.MetricsPatch.CommentCount == nil {
		snap.UnreportedCounts = append(snap.UnreportedCounts, entity.CommentCountField)
	}
	return snap, nil
}
