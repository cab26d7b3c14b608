package match

import "strconv"

// Keypad accumulates a visit score digit by digit. Digits that would take the value past 180
// are ignored.
type Keypad struct {
	buf string
}

// Press appends a digit and reports whether it was accepted
func (k *Keypad) Press(digit int) bool {
	if digit < 0 || digit > 9 {
		return false
	}

	candidate := k.buf + strconv.Itoa(digit)
	if k.buf == "0" {
		candidate = strconv.Itoa(digit)
	}
	v, err := strconv.Atoi(candidate)
	if err != nil || v > MaxThrow {
		return false
	}
	k.buf = candidate
	return true
}

// Backspace removes the last digit
func (k *Keypad) Backspace() {
	if len(k.buf) > 0 {
		k.buf = k.buf[:len(k.buf)-1]
	}
}

// Clear empties the buffer
func (k *Keypad) Clear() {
	k.buf = ""
}

// Value returns the entered score, false when nothing has been entered
func (k *Keypad) Value() (int, bool) {
	if k.buf == "" {
		return 0, false
	}
	v, err := strconv.Atoi(k.buf)
	if err != nil {
		return 0, false
	}
	return v, true
}

// String returns the digits as typed
func (k *Keypad) String() string {
	return k.buf
}
