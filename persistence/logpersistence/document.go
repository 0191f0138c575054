package logpersistence

import (
	"encoding/json"
	"fmt"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/procyon/persistence"
)

// document is the JSON representation of a persistence.Record used as the
// value of a topic entry.
type document struct {
	ProcessInstanceID string `json:"processInstanceId"`
	Version           int64  `json:"version"`
	MediaType         string `json:"mediaType"`
	State             []byte `json:"state"`
}

// marshalRecord returns the binary representation of r.
func marshalRecord(r persistence.Record) ([]byte, error) {
	return json.Marshal(document{
		ProcessInstanceID: r.ID,
		Version:           r.Version,
		MediaType:         r.Packet.MediaType,
		State:             r.Packet.Data,
	})
}

// unmarshalRecord returns the record represented by the entry e.
func unmarshalRecord(e Entry) (persistence.Record, error) {
	var doc document
	if err := json.Unmarshal(e.Value, &doc); err != nil {
		return persistence.Record{}, fmt.Errorf(
			"unable to unmarshal entry at offset %d: %w",
			e.Offset,
			err,
		)
	}

	if doc.ProcessInstanceID != e.Key {
		return persistence.Record{}, fmt.Errorf(
			"entry at offset %d has key '%s' but contains process instance '%s'",
			e.Offset,
			e.Key,
			doc.ProcessInstanceID,
		)
	}

	return persistence.Record{
		ID:      doc.ProcessInstanceID,
		Version: doc.Version,
		Packet: marshalkit.Packet{
			MediaType: doc.MediaType,
			Data:      doc.State,
		},
	}, nil
}
