// Package event holds the record a client uploads for a single sampled
// response: who answered, when, for which experiment, and what they answered.
package event

import (
	"encoding/json"
	"time"
)

// ReferredExperimentKey names an answer that links to another experiment
// rather than holding participant input.
const ReferredExperimentKey = "referred_experiment"

// Output is one named answer.
type Output struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Event struct {
	ID                  *int64   `json:"id,omitempty"`
	ExperimentID        *int64   `json:"experimentId,omitempty"`
	ExperimentName      string   `json:"experimentName,omitempty"`
	ExperimentVersion   *int     `json:"experimentVersion,omitempty"`
	ExperimentGroupName string   `json:"experimentGroupName,omitempty"`
	Who                 string   `json:"who,omitempty"`
	When                *Time    `json:"when,omitempty"`
	AppID               string   `json:"appId,omitempty"`
	PacoVersion         string   `json:"pacoVersion,omitempty"`
	Responses           []Output `json:"responses,omitempty"`
	ResponseTime        *Time    `json:"responseTime,omitempty"`
	ScheduledTime       *Time    `json:"scheduledTime,omitempty"`
	SortDate            *Time    `json:"sortDate,omitempty"`
	Blobs               []string `json:"blobs,omitempty"`
	Timezone            string   `json:"timezone,omitempty"`
	ActionTriggerID     *int64   `json:"actionTriggerId,omitempty"`
	ActionTriggerSpecID *int64   `json:"actionTriggerSpecId,omitempty"`
	ActionID            *int64   `json:"actionId,omitempty"`

	// Device-local fields, never sent to the server.
	Lat      string `json:"-"`
	Lon      string `json:"-"`
	Shared   bool   `json:"-"`
	Joined   bool   `json:"-"`
	Uploaded bool   `json:"-"`
}

// UnmarshalJSON also accepts the older `paco_version` key. The new key wins
// when both are present.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event

	var aux struct {
		plain
		LegacyPacoVersion string `json:"paco_version"`
	}
	aux.plain = plain(*e)

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*e = Event(aux.plain)
	if e.PacoVersion == "" {
		e.PacoVersion = aux.LegacyPacoVersion
	}

	return nil
}

// WhatByKey returns the value of the first answer named key.
func (e *Event) WhatByKey(key string) (string, bool) {
	for _, out := range e.Responses {
		if out.Name == key {
			return out.Value, true
		}
	}

	return "", false
}

// IsMissedSignal reports whether the participant was prompted but never answered.
func (e *Event) IsMissedSignal() bool {
	return isSet(e.ScheduledTime) && !isSet(e.ResponseTime)
}

// ResponseDuration is the delay between the prompt and the answer, or zero
// when either is unknown.
func (e *Event) ResponseDuration() time.Duration {
	if !isSet(e.ResponseTime) || !isSet(e.ScheduledTime) {
		return 0
	}

	return e.ResponseTime.Sub(e.ScheduledTime.Time)
}

func (e *Event) IsJoinEvent() bool {
	_, ok := e.WhatByKey("joined")
	return ok
}

// IsEmptyResponse reports whether every answer, other than a referred
// experiment link, is blank.
func (e *Event) IsEmptyResponse() bool {
	for _, out := range e.Responses {
		if out.Name == ReferredExperimentKey {
			continue
		}

		if out.Value != "" {
			return false
		}
	}

	return true
}

// IDFromTimes returns the scheduled time, falling back to the response time.
func (e *Event) IDFromTimes() *Time {
	if isSet(e.ScheduledTime) {
		return e.ScheduledTime
	}

	return e.ResponseTime
}

func isSet(t *Time) bool {
	return t != nil && !t.IsZero()
}
