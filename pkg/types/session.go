// Package types provides the core data types for the Floyd agent runtime:
// messages, sessions, tool descriptors and the normalized LLM stream event.
package types

import "encoding/json"

// Session is a durable, ordered conversation: one per user-visible chat.
// It is exclusively owned by the Agent Engine instance that opened it; the
// Session Store owns its bytes on disk (§3 of SPEC_FULL.md).
type Session struct {
	ID        string    `json:"id"`
	Created   int64     `json:"created"` // unix millis
	Updated   int64     `json:"updated"` // unix millis
	Directory string    `json:"directory,omitempty"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages"`

	// Extra preserves any field this build doesn't recognize, so that
	// save(load(x)) round-trips byte-identically even across schema
	// additions (I3, forward-compat round-trip).
	Extra map[string]json.RawMessage `json:"-"`
}

// sessionFields lists the struct tags MarshalJSON/UnmarshalJSON own
// directly; anything else found on the wire is stashed in Extra.
var sessionFields = map[string]bool{
	"id": true, "created": true, "updated": true,
	"directory": true, "title": true, "messages": true,
}

// MarshalJSON re-emits Extra alongside the known fields, so a load/save
// cycle never drops data written by a newer build.
func (s Session) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Extra)+6)
	for k, v := range s.Extra {
		out[k] = v
	}

	marshal := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}
	if err := marshal("id", s.ID); err != nil {
		return nil, err
	}
	if err := marshal("created", s.Created); err != nil {
		return nil, err
	}
	if err := marshal("updated", s.Updated); err != nil {
		return nil, err
	}
	if s.Directory != "" {
		if err := marshal("directory", s.Directory); err != nil {
			return nil, err
		}
	}
	if s.Title != "" {
		if err := marshal("title", s.Title); err != nil {
			return nil, err
		}
	}
	messages := s.Messages
	if messages == nil {
		messages = []Message{}
	}
	if err := marshal("messages", messages); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the known fields and stashes everything else in
// Extra, for re-emission by MarshalJSON.
func (s *Session) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &s.ID); err != nil {
			return err
		}
	}
	if v, ok := raw["created"]; ok {
		if err := json.Unmarshal(v, &s.Created); err != nil {
			return err
		}
	}
	if v, ok := raw["updated"]; ok {
		if err := json.Unmarshal(v, &s.Updated); err != nil {
			return err
		}
	}
	if v, ok := raw["directory"]; ok {
		if err := json.Unmarshal(v, &s.Directory); err != nil {
			return err
		}
	}
	if v, ok := raw["title"]; ok {
		if err := json.Unmarshal(v, &s.Title); err != nil {
			return err
		}
	}
	if v, ok := raw["messages"]; ok {
		if err := json.Unmarshal(v, &s.Messages); err != nil {
			return err
		}
	}

	s.Extra = nil
	for k, v := range raw {
		if sessionFields[k] {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}

	return nil
}

// SessionSummary is the projection `list()` returns: cheap enough to load
// in bulk without materializing every message in every session.
type SessionSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated int64  `json:"updated"`
}
