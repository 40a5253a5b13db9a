package editorconn

import (
	"encoding/json"
	"fmt"

	"collabd/actor"
)

// wireMessage is the envelope every line of the editor protocol is
// decoded into first; params is re-decoded against the shape the
// method demands.
type wireMessage struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type openParams struct {
	URI string `json:"uri"`
}

type closeParams struct {
	URI string `json:"uri"`
}

type editParams struct {
	URI   string    `json:"uri"`
	Delta wireDelta `json:"delta"`
}

type wireDelta struct {
	Revision int           `json:"revision"`
	Delta    []wireElement `json:"delta"`
}

type wireElement struct {
	Range       wireRange `json:"range"`
	Replacement string    `json:"replacement"`
}

// wireRange encodes each endpoint as a `[line, col]` pair, per the
// protocol's on-the-wire shape.
type wireRange struct {
	Anchor [2]int `json:"anchor"`
	Head   [2]int `json:"head"`
}

func (d wireDelta) toRevisionedEditorDelta() actor.RevisionedEditorDelta {
	elements := make([]actor.RangeReplacement, 0, len(d.Delta))
	for _, el := range d.Delta {
		elements = append(elements, actor.RangeReplacement{
			Range: actor.Range{
				AnchorLine: el.Range.Anchor[0], AnchorCol: el.Range.Anchor[1],
				HeadLine: el.Range.Head[0], HeadCol: el.Range.Head[1],
			},
			Replacement: el.Replacement,
		})
	}
	return actor.RevisionedEditorDelta{
		Revision: d.Revision,
		Delta:    actor.EditorDelta{Elements: elements},
	}
}

func fromRevisionedEditorDelta(rd actor.RevisionedEditorDelta) wireDelta {
	elements := make([]wireElement, 0, len(rd.Delta.Elements))
	for _, el := range rd.Delta.Elements {
		elements = append(elements, wireElement{
			Range: wireRange{
				Anchor: [2]int{el.Range.AnchorLine, el.Range.AnchorCol},
				Head:   [2]int{el.Range.HeadLine, el.Range.HeadCol},
			},
			Replacement: el.Replacement,
		})
	}
	return wireDelta{Revision: rd.Revision, Delta: elements}
}

// outboundEdit is the full JSON object written back to the editor for
// a daemon-originated revisioned delta.
type outboundEdit struct {
	Method string          `json:"method"`
	Params outboundEditMsg `json:"params"`
}

type outboundEditMsg struct {
	URI   string    `json:"uri"`
	Delta wireDelta `json:"delta"`
}

func encodeOutboundEdit(uri string, rd actor.RevisionedEditorDelta) ([]byte, error) {
	return json.Marshal(outboundEdit{
		Method: "edit",
		Params: outboundEditMsg{URI: uri, Delta: fromRevisionedEditorDelta(rd)},
	})
}

// parsedMessage is the decoded form of one protocol line, ready for a
// Connection to dispatch.
type parsedMessage struct {
	method string
	open   openParams
	close  closeParams
	edit   editParams
}

func parseLine(line []byte) (parsedMessage, error) {
	var msg wireMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return parsedMessage{}, fmt.Errorf("editorconn: malformed message: %w", err)
	}
	out := parsedMessage{method: msg.Method}
	switch msg.Method {
	case "open":
		if err := json.Unmarshal(msg.Params, &out.open); err != nil {
			return parsedMessage{}, fmt.Errorf("editorconn: malformed open params: %w", err)
		}
	case "close":
		if err := json.Unmarshal(msg.Params, &out.close); err != nil {
			return parsedMessage{}, fmt.Errorf("editorconn: malformed close params: %w", err)
		}
	case "edit":
		if err := json.Unmarshal(msg.Params, &out.edit); err != nil {
			return parsedMessage{}, fmt.Errorf("editorconn: malformed edit params: %w", err)
		}
	default:
		return parsedMessage{}, fmt.Errorf("editorconn: unknown method %q", msg.Method)
	}
	return out, nil
}

// fileURI renders the daemon's persisted-file path as the protocol's
// `file://<absolute-path>` URI.
func fileURI(absPath string) string {
	return "file://" + absPath
}
