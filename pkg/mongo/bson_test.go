package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNormalizeShellJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "unquoted keys",
			input: `{status: "inactive"}`,
			want:  `{"status": "inactive"}`,
		},
		{
			name:  "dollar prefix operator",
			input: `{age: {$gt: 18}}`,
			want:  `{"age": {"$gt": 18}}`,
		},
		{
			name:  "already quoted unchanged",
			input: `{"status": "inactive"}`,
			want:  `{"status": "inactive"}`,
		},
		{
			name:  "string value with braces untouched",
			input: `{msg: "looks {like: json}"}`,
			want:  `{"msg": "looks {like: json}"}`,
		},
		{
			name:  "number long",
			input: `{n: NumberLong("42")}`,
			want:  `{"n": {"$numberLong": "42"}}`,
		},
		{
			name:  "trailing comma dropped",
			input: `{a: 1,}`,
			want:  `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeShellJSON(tt.input))
		})
	}
}

func TestParseQueryString(t *testing.T) {
	m, err := ParseQueryString(`{user: "ann", age: {$gt: 18}}`)
	require.NoError(t, err)
	assert.Equal(t, "ann", m["user"])

	_, err = ParseQueryString("getmore local.oplog.rs")
	require.Error(t, err)
}

func TestAsDocument(t *testing.T) {
	m, opaque := AsDocument(bson.D{{Key: "find", Value: "users"}, {Key: "filter", Value: bson.D{{Key: "a", Value: 1}}}})
	require.Empty(t, opaque)
	require.NotNil(t, m)
	assert.Equal(t, "users", m["find"])
	assert.Equal(t, bson.M{"a": 1}, m["filter"])

	m, opaque = AsDocument("not a document")
	assert.Nil(t, m)
	assert.Equal(t, "not a document", opaque)

	m, opaque = AsDocument(`{a: 1}`)
	require.Empty(t, opaque)
	assert.Equal(t, bson.M{"a": int32(1)}, m)

	m, opaque = AsDocument(nil)
	assert.Nil(t, m)
	assert.Empty(t, opaque)
}
