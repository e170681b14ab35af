package thread

import (
	"runtime"
	"syscall"
	"unsafe"
)

// Realtime locks the calling goroutine to its own kernel thread and elevates that
// thread's priority to realtime. It sets the round-robin scheduling policy and uses
// priority level 10 (somewhere in the lower middle of the range).
//
// The framer's radio goroutine calls this: missing a CC1101 FIFO threshold interrupt
// because the Go scheduler ran something else on its thread turns into a TX underrun or
// a dropped RX byte, so it needs to run at a steady, elevated priority same as the
// firmware's two dedicated cores.
func Realtime() error {
	runtime.LockOSThread()
	tid := syscall.Gettid()
	res, _, err := syscall.RawSyscall(syscall.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(RR), uintptr(unsafe.Pointer(&schedParam{10})))
	if res == 0 {
		return nil
	}
	return err
}

const FIFO = 1 // fifo scheduling policy
const RR = 2   // round-robin scheduling policy

type schedParam struct {
	Priority int
}
