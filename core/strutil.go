package core

// itoa formats a signed integer without pulling in fmt or strconv.
func itoa(n int) string {
	if n >= 0 {
		return formatUint(uint64(n), false)
	}
	return formatUint(uint64(-int64(n)), true)
}

// utoa formats an unsigned 32-bit integer.
func utoa(n uint32) string {
	return formatUint(uint64(n), false)
}

func formatUint(v uint64, negative bool) string {
	var buf [21]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// valueToString renders a dictionary constant value.
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case uint8:
		return utoa(uint32(val))
	case uint16:
		return utoa(uint32(val))
	case uint32:
		return utoa(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	}
	return ""
}
