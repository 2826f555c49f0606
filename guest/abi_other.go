//go:build !wasip1

package guest

import (
	"os"

	"github.com/reglet-dev/hostbridge/wireformat"
)

// hostTransport fails every request outside a wasm guest.
func hostTransport(op wireformat.Op, _ []byte) []byte {
	return wireformat.NewInternalError("hostbridge: " + string(op) + " is only available inside a wasm guest").ToJSON()
}

// hostLog writes records to stderr outside a wasm guest.
func hostLog(record []byte) {
	_, _ = os.Stderr.Write(append(record, '\n'))
}
