package utils

import (
	"fmt"
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
)

func ExtractCallerPhone(headers []sip.Header) string {
	for _, header := range headers {
		if header.Name() == "From" {
			from := header.Value()
			if after, ok := strings.CutPrefix(from, "<sip:"); ok {
				parts := strings.Split(strings.TrimSuffix(after, ">"), "@")
				return parts[0]
			}
		}
	}
	return "unknown"
}

func GenerateCallID() string {
	return fmt.Sprintf("call-%s", uuid.New().String())
}
