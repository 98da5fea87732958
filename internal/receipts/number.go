package receipts

import (
	"crypto/rand"
	"time"
)

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewNumber returns a receipt number: UNIPET, the UTC timestamp and four
// random characters, e.g. UNIPET20250310T130000K7QZ.
func NewNumber(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	suffix := make([]byte, len(b))
	for i, v := range b {
		suffix[i] = numberAlphabet[int(v)%len(numberAlphabet)]
	}
	return "UNIPET" + now.UTC().Format("20060102T150405") + string(suffix)
}

func objectKey(number string) string {
	return "receipts/" + number + ".pdf"
}

func fileName(number string) string {
	return "comprovante_" + number + ".pdf"
}
