package models

import (
	"errors"
	"time"
)

// RuleSource records where the logic rules of a run came from.
type RuleSource string

const (
	RuleSourceSession  RuleSource = "session"
	RuleSourceConfig   RuleSource = "config"
	RuleSourceDefaults RuleSource = "defaults"
)

// Run is one completed recommendation pass over a session.
type Run struct {
	ID           string     `json:"id" yaml:"id"`
	EndpointID   int        `json:"endpoint_id" yaml:"endpoint_id"`
	EndpointName string     `json:"endpoint_name" yaml:"endpoint_name"`
	SessionID    int        `json:"session_id" yaml:"session_id"`
	SessionURL   string     `json:"session_url" yaml:"session_url"`
	DataType     DataType   `json:"data_type" yaml:"data_type"`
	DoseUnits    int        `json:"dose_units" yaml:"dose_units"`
	RuleSource   RuleSource `json:"rule_source" yaml:"rule_source"`
	Models       []Model    `json:"models" yaml:"-"`
	CreatedAt    time.Time  `json:"created_at" yaml:"created_at"`
}

// Validate checks that a run can be stored.
func (r *Run) Validate() error {
	if r.EndpointID == 0 {
		return errors.New("run endpoint ID must not be zero")
	}
	if r.SessionURL == "" {
		return errors.New("run session URL must not be empty")
	}
	return nil
}

// RecommendedIDs lists the ids of recommended models in order.
func (r *Run) RecommendedIDs() []int {
	var ids []int
	for _, m := range r.Models {
		if m.Recommendation.Recommended {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
