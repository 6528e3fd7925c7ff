package mongo

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// ---------- 预编译正则，避免每次调用重复编译 ----------

var (
	// reUnquotedKey 匹配紧跟在 { 或 , 后面的无引号键名（可含 $、.）。
	reUnquotedKey = regexp.MustCompile(`([{,])\s*(\$?[a-zA-Z_][\w.$]*)\s*:`)

	// reISODate 匹配 ISODate("...") shell 函数。
	reISODate = regexp.MustCompile(`ISODate\(\s*"([^"]+)"\s*\)`)

	// reObjectId 匹配 ObjectId("...") shell 函数。
	reObjectId = regexp.MustCompile(`ObjectId\(\s*"([^"]+)"\s*\)`)

	// reNumberLong 匹配 NumberLong(123) 或 NumberLong("123") shell 函数。
	reNumberLong = regexp.MustCompile(`NumberLong\(\s*"?(-?\d+)"?\s*\)`)

	// reNumberInt 匹配 NumberInt(42) 或 NumberInt("42") shell 函数。
	reNumberInt = regexp.MustCompile(`NumberInt\(\s*"?(-?\d+)"?\s*\)`)

	// reTrailingComma 匹配 } 或 ] 前面的尾部逗号。
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// NormalizeShellJSON turns mongo-shell flavored query text into extended JSON
// the bson package can decode: unquoted keys get quoted, common shell wrapper
// functions are rewritten, trailing commas are dropped. Double-quoted string
// values pass through untouched.
func NormalizeShellJSON(input string) string {
	input = strings.TrimSpace(input)
	if input == "" || input == "{}" {
		return input
	}

	input = reISODate.ReplaceAllString(input, `{"$$date": "$1"}`)
	input = reObjectId.ReplaceAllString(input, `{"$$oid": "$1"}`)
	input = reNumberLong.ReplaceAllString(input, `{"$$numberLong": "$1"}`)
	input = reNumberInt.ReplaceAllString(input, `$1`)

	var buf strings.Builder
	buf.Grow(len(input) + 64)
	for _, seg := range splitByStrings(input) {
		if seg.isString {
			buf.WriteString(seg.content)
		} else {
			part := reUnquotedKey.ReplaceAllString(seg.content, `$1"$2":`)
			buf.WriteString(reTrailingComma.ReplaceAllString(part, `$1`))
		}
	}
	return buf.String()
}

// segment 表示输入字符串按双引号边界拆分后的一个片段。
type segment struct {
	content  string
	isString bool
}

func splitByStrings(input string) []segment {
	var (
		segs  []segment
		start int
		inStr bool
	)
	for i := 0; i < len(input); i++ {
		c := input[i]
		if inStr {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				segs = append(segs, segment{content: input[start : i+1], isString: true})
				start = i + 1
				inStr = false
			}
			continue
		}
		if c == '"' {
			if i > start {
				segs = append(segs, segment{content: input[start:i]})
			}
			start = i
			inStr = true
		}
	}
	if start < len(input) {
		segs = append(segs, segment{content: input[start:], isString: inStr})
	}
	return segs
}

// ParseQueryString decodes a stringified query payload into a document.
// Payloads that are not brace-delimited are opaque and stay strings.
func ParseQueryString(s string) (bson.M, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("not a document: %q", s)
	}

	var m bson.M
	if err := bson.UnmarshalExtJSON([]byte(NormalizeShellJSON(s)), false, &m); err != nil {
		return nil, fmt.Errorf("parse query %q: %w", s, err)
	}
	return m, nil
}

// AsDocument coerces a decoded currentOp payload field into a bson.M when it
// is structured, or returns the opaque string form when it is not.
func AsDocument(v interface{}) (bson.M, string) {
	switch t := v.(type) {
	case nil:
		return nil, ""
	case bson.M:
		if len(t) == 0 {
			return nil, ""
		}
		return t, ""
	case bson.D:
		if len(t) == 0 {
			return nil, ""
		}
		return deepToM(t).(bson.M), ""
	case string:
		if t == "" {
			return nil, ""
		}
		if m, err := ParseQueryString(t); err == nil {
			return m, ""
		}
		return nil, t
	default:
		return nil, ""
	}
}

func deepToM(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		m := make(bson.M, len(t))
		for _, e := range t {
			m[e.Key] = deepToM(e.Value)
		}
		return m
	case bson.A:
		out := make(bson.A, len(t))
		for i := range t {
			out[i] = deepToM(t[i])
		}
		return out
	default:
		return v
	}
}
