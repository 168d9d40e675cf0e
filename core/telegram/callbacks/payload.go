package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt parses the callback payload as an int.
func PayloadInt(c tele.Context) (int, error) {
	return strconv.Atoi(CallbackPayload(c))
}

// PayloadInt64 parses the callback payload as an int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(CallbackPayload(c), 10, 64)
}

// PayloadParts splits the callback payload using the given separator.
func PayloadParts(c tele.Context, sep string) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	return strings.Split(p, sep), nil
}

// PayloadInts parses a payload like "3|1|0" into ints.
func PayloadInts(c tele.Context, sep string) ([]int, error) {
	parts, err := PayloadParts(c, sep)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
