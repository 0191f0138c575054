package boltpersistence

import (
	"encoding/json"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/procyon/internal/x/bboltx"
	"github.com/dogmatiq/procyon/persistence"
)

// document is the JSON representation of a persistence.Record stored in
// BoltDB.
type document struct {
	ProcessInstanceID string `json:"processInstanceId"`
	Version           int64  `json:"version"`
	MediaType         string `json:"mediaType"`
	State             []byte `json:"state"`
}

// marshalRecord returns the binary representation of r.
func marshalRecord(r persistence.Record) []byte {
	data, err := json.Marshal(document{
		ProcessInstanceID: r.ID,
		Version:           r.Version,
		MediaType:         r.Packet.MediaType,
		State:             r.Packet.Data,
	})
	bboltx.Must(err)

	return data
}

// unmarshalRecord returns the record represented by data.
func unmarshalRecord(data []byte) persistence.Record {
	var doc document
	bboltx.Must(json.Unmarshal(data, &doc))

	return persistence.Record{
		ID:      doc.ProcessInstanceID,
		Version: doc.Version,
		Packet: marshalkit.Packet{
			MediaType: doc.MediaType,
			Data:      doc.State,
		},
	}
}
