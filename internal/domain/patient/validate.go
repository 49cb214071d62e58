package patient

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phoneRegion is assumed for numbers written without a country code.
const phoneRegion = "BR"

// NormalizeCPF validates a CPF (with or without punctuation) and returns it
// formatted as 000.000.000-00.
func NormalizeCPF(raw string) (string, bool) {
	digits := make([]int, 0, 11)
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == '.' || r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	if len(digits) != 11 {
		return "", false
	}
	same := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			same = false
			break
		}
	}
	if same {
		return "", false
	}
	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += digits[i] * (pos + 1 - i)
		}
		check := sum * 10 % 11
		if check == 10 {
			check = 0
		}
		if digits[pos] != check {
			return "", false
		}
	}
	d := digits
	return fmt.Sprintf("%d%d%d.%d%d%d.%d%d%d-%d%d", d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8], d[9], d[10]), true
}

// NormalizePhone validates a phone number and returns it in E.164 form.
func NormalizePhone(raw string) (string, bool) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}
