package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A log file is a bare sequence of CBOR items, one Event each, with no
// header. Appending to an existing file therefore needs no rewrite.

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
		TimeTag:     cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic("log: cbor encode mode: " + err.Error())
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
		TimeTag:   cbor.DecTagOptional,
	}.DecMode()
	if err != nil {
		panic("log: cbor decode mode: " + err.Error())
	}
	return dm
}

// Marshal encodes one event.
func Marshal(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// Unmarshal decodes one event.
func Unmarshal(data []byte) (Event, error) {
	var event Event
	err := decMode.Unmarshal(data, &event)
	return event, err
}

func newEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

func newDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }
