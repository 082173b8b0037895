// Package viewsync coordinates two isolated rendering surfaces through
// enable, measure, align and synchronized-scroll cycles. The surfaces cannot
// observe each other; everything crosses an asynchronous message channel
// whose ordering is guaranteed only by protocol sequencing.
package viewsync

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/sunzi-skynet/contentcheck-3000/internal/align"
)

// Side identifies one of the two rendering surfaces.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// Message is the closed set of protocol messages. The wire form is a JSON
// object with a "type" discriminator; unknown types are ignored on receipt,
// never treated as errors.
type Message interface {
	messageType() string
}

// Coordinator to surface.

// Enable activates highlight sync on a surface and tells it which side it is.
type Enable struct {
	Side Side `json:"side"`
}

// Disable deactivates highlight sync on a surface.
type Disable struct{}

// Measure asks a surface to report its content block measurements.
type Measure struct{}

// ApplySpacers carries the spacer heights, keyed by block index, that a
// surface must inject before its blocks.
type ApplySpacers struct {
	Spacers map[int]float64 `json:"spacers"`
}

// ClearSpacers resets all spacers to zero height.
type ClearSpacers struct{}

// ScrollTo instructs a surface to scroll programmatically. The surface must
// not re-report this movement as a user scroll.
type ScrollTo struct {
	Offset float64 `json:"offset"`
}

// SetHighlightMode switches a surface between the two display modes.
type SetHighlightMode struct {
	Mode string `json:"mode"`
}

// Surface to coordinator.

// Measurements is a surface's block measurement report.
type Measurements struct {
	Side   Side          `json:"side"`
	Blocks []align.Block `json:"blocks"`
}

// Scrolled reports a user scroll on one surface.
type Scrolled struct {
	Side   Side    `json:"side"`
	Offset float64 `json:"offset"`
}

func (Enable) messageType() string           { return "enable" }
func (Disable) messageType() string          { return "disable" }
func (Measure) messageType() string          { return "measure" }
func (ApplySpacers) messageType() string     { return "applySpacers" }
func (ClearSpacers) messageType() string     { return "clearSpacers" }
func (ScrollTo) messageType() string         { return "scrollTo" }
func (SetHighlightMode) messageType() string { return "setHighlightMode" }
func (Measurements) messageType() string     { return "measurements" }
func (Scrolled) messageType() string         { return "scrolled" }

// Encode serializes a message to its wire form.
func Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.messageType(), err)
	}

	// Splice the discriminator into the payload object.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msg.messageType(), err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	fields["type"] = json.RawMessage(`"` + msg.messageType() + `"`)
	return json.Marshal(fields)
}

// Decode parses a wire message. A recognized type with a malformed payload is
// an error; an unrecognized type yields (nil, nil) so callers can skip it.
func Decode(data []byte) (Message, error) {
	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, fmt.Errorf("message has no type field")
	}

	unmarshal := func(dst Message) (Message, error) {
		if err := json.Unmarshal(data, dst); err != nil {
			return nil, fmt.Errorf("decode %s message: %w", kind.String(), err)
		}
		return dst, nil
	}

	switch kind.String() {
	case "enable":
		msg := &Enable{}
		return unmarshal(msg)
	case "disable":
		return &Disable{}, nil
	case "measure":
		return &Measure{}, nil
	case "applySpacers":
		msg := &ApplySpacers{}
		return unmarshal(msg)
	case "clearSpacers":
		return &ClearSpacers{}, nil
	case "scrollTo":
		msg := &ScrollTo{}
		return unmarshal(msg)
	case "setHighlightMode":
		msg := &SetHighlightMode{}
		return unmarshal(msg)
	case "measurements":
		msg := &Measurements{}
		return unmarshal(msg)
	case "scrolled":
		msg := &Scrolled{}
		return unmarshal(msg)
	default:
		return nil, nil
	}
}
