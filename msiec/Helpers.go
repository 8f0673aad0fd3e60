package msiec

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRegisterAddr parses "0xXX" or a decimal string into a RegisterAddr.
// Examples: "0x2e", "46"
func ParseRegisterAddr(s string) (RegisterAddr, error) {
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	val, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid register address %q: %w", s, err)
	}
	return RegisterAddr(val), nil
}

// ParseByteValue parses "0xXX" or a decimal string into a byte value.
func ParseByteValue(s string) (byte, error) {
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	val, err := strconv.ParseUint(digits, base, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte value %q: %w", s, err)
	}
	return byte(val), nil
}

// FormatRegisterDump renders a 256-byte register image as a hex dump with a
// printable-ASCII column, 16 bytes per row.
func FormatRegisterDump(image []byte) string {
	var b strings.Builder
	b.WriteString("      00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f\n")
	for base := 0; base < len(image); base += 16 {
		end := base + 16
		if end > len(image) {
			end = len(image)
		}
		row := image[base:end]
		fmt.Fprintf(&b, "0x%02x:", base)
		for _, v := range row {
			fmt.Fprintf(&b, " %02x", v)
		}
		for i := len(row); i < 16; i++ {
			b.WriteString("   ")
		}
		b.WriteString("  ")
		for _, v := range row {
			if v >= 0x20 && v <= 0x7e {
				b.WriteByte(v)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
