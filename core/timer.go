package core

import "sync/atomic"

// TimerFreq is the scheduler clock: the free-running 1 MHz system timer.
const TimerFreq = 1000000

var (
	systemTicks uint32
	uptimeHigh  uint32
)

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime publishes the latest hardware counter value. A value smaller than
// the previous one is taken as a 32-bit rollover.
func SetTime(ticks uint32) {
	prev := atomic.SwapUint32(&systemTicks, ticks)
	if ticks < prev {
		atomic.AddUint32(&uptimeHigh, 1)
	}
}

// GetUptime returns 64-bit time since the counter started
func GetUptime() uint64 {
	return uint64(atomic.LoadUint32(&uptimeHigh))<<32 | uint64(GetTime())
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerInit clears the clock and drops any scheduled timers
func TimerInit() {
	state := maskIRQ()
	timerList = nil
	unmaskIRQ(state)
	atomic.StoreUint32(&systemTicks, 0)
	atomic.StoreUint32(&uptimeHigh, 0)
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
