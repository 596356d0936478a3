//go:build librpm

package native

/*
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"

	"github.com/cavaliercoder/rpmq/librpm"
)

//export goNotify
func goNotify(handle C.uintptr_t, what C.int, amount, total C.uint64_t, key *C.char) {
	fn, ok := cgo.Handle(handle).Value().(librpm.NotifyFunc)
	if !ok || fn == nil {
		return
	}
	k := ""
	if key != nil {
		k = C.GoString(key)
	}
	fn(librpm.CallbackType(what), uint64(amount), uint64(total), k)
}
