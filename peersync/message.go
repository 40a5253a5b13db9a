package peersync

import (
	"encoding/json"

	"collabd/crdt"
)

// encodeSyncMessage and decodeSyncMessage are the peer protocol's
// payload codec: the opaque bytes a length-prefixed frame carries are
// the JSON encoding of a crdt.SyncMessage, matching the shape ops
// already carry (see crdt.Op's json tags).
func encodeSyncMessage(msg crdt.SyncMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func decodeSyncMessage(payload []byte) (crdt.SyncMessage, error) {
	var msg crdt.SyncMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return crdt.SyncMessage{}, err
	}
	return msg, nil
}
