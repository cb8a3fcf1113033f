package arch

import (
	"unsafe"

	"github.com/mantleos/kmem"
)

// writeBytesRaw fills count bytes at address with value through the current
// address space. Only meaningful inside a kernel address space where the full
// span is mapped writable; the hardware families route WriteBytes here.
func writeBytesRaw(address kmem.VirtualAddress, value byte, count uint64) {
	if count == 0 {
		return
	}

	buffer := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(address.Data()))), count)
	for i := range buffer {
		buffer[i] = value
	}
}
