//go:build wasip1

package guest

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/reglet-dev/hostbridge/wireformat"
)

// MaxTotalAllocations bounds the memory handed out through allocate.
const MaxTotalAllocations = 100 * 1024 * 1024 // 100 MB

// memoryManager pins every buffer handed to the host so the GC cannot
// collect it before it is freed.
var memoryManager = struct {
	sync.Mutex
	ptrs           map[uint32][]byte
	totalAllocated int
}{
	ptrs: make(map[uint32][]byte),
}

// allocate reserves memory the host writes responses into.
//
//go:wasmexport allocate
func allocate(size uint32) uint32 {
	if size == 0 {
		return 0
	}

	memoryManager.Lock()
	defer memoryManager.Unlock()

	if memoryManager.totalAllocated+int(size) > MaxTotalAllocations {
		panic(fmt.Sprintf("guest: memory allocation limit exceeded (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			size, memoryManager.totalAllocated, MaxTotalAllocations))
	}

	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(&buf[0])))
	memoryManager.ptrs[ptr] = buf
	memoryManager.totalAllocated += int(size)
	return ptr
}

// deallocate releases a buffer from allocate. Unknown pointers are ignored.
//
//go:wasmexport deallocate
func deallocate(ptr uint32, _ uint32) {
	memoryManager.Lock()
	defer memoryManager.Unlock()

	buf, exists := memoryManager.ptrs[ptr]
	if !exists {
		return
	}
	delete(memoryManager.ptrs, ptr)
	memoryManager.totalAllocated -= len(buf)
	if memoryManager.totalAllocated < 0 {
		memoryManager.totalAllocated = 0
	}
}

// ptrFromBytes copies data into pinned memory and returns it packed.
func ptrFromBytes(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	size := uint32(len(data)) //nolint:gosec // G115: bounded by MaxTotalAllocations
	ptr := allocate(size)
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), len(data)), data)
	return PackPtrLen(ptr, size)
}

// free releases a packed buffer from ptrFromBytes.
func free(packed uint64) {
	ptr, length := UnpackPtrLen(packed)
	if ptr != 0 {
		deallocate(ptr, length)
	}
}

// takeBytes copies the packed buffer out of linear memory and frees it.
func takeBytes(packed uint64) []byte {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil
	}
	//nolint:gosec // G103: Valid unsafe.Pointer use for WASM linear memory access
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), length)
	data := make([]byte, length)
	copy(data, src)
	deallocate(ptr, length)
	return data
}

//go:wasmimport hostbridge object_get
func hostObjectGet(packed uint64) uint64

//go:wasmimport hostbridge object_set
func hostObjectSet(packed uint64) uint64

//go:wasmimport hostbridge object_call
func hostObjectCall(packed uint64) uint64

//go:wasmimport hostbridge object_keys
func hostObjectKeys(packed uint64) uint64

//go:wasmimport hostbridge log_message
func hostLogMessage(packed uint64)

// hostTransport sends requests through the host module imports.
func hostTransport(op wireformat.Op, request []byte) []byte {
	packed := ptrFromBytes(request)
	defer free(packed)

	var response uint64
	switch op {
	case wireformat.OpGet:
		response = hostObjectGet(packed)
	case wireformat.OpSet:
		response = hostObjectSet(packed)
	case wireformat.OpCall:
		response = hostObjectCall(packed)
	case wireformat.OpKeys:
		response = hostObjectKeys(packed)
	default:
		return wireformat.NewNotFoundError(string(op)).ToJSON()
	}
	return takeBytes(response)
}

// hostLog sends a JSON log record to the host.
func hostLog(record []byte) {
	packed := ptrFromBytes(record)
	hostLogMessage(packed)
	free(packed)
}

func init() {
	slog.SetDefault(slog.New(NewLogHandler()))
}

// Input copies the packed argument of an exported function out of linear
// memory and releases it.
func Input(packed uint64) []byte {
	return takeBytes(packed)
}

// Output copies data into pinned memory and returns it packed, for an
// exported function's result. The host releases it after reading.
func Output(data []byte) uint64 {
	return ptrFromBytes(data)
}
