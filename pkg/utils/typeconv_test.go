package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStringify(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	oid := primitive.NewObjectID()

	assert.Nil(t, Stringify(nil))
	tests := []struct {
		in   interface{}
		want string
	}{
		{"x", "x"},
		{[]byte("raw"), "raw"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{ts, "2024-03-01T12:00:00Z"},
		{primitive.NewDateTimeFromTime(ts), "2024-03-01T12:00:00Z"},
		{oid, oid.Hex()},
	}
	for _, tc := range tests {
		got := Stringify(tc.in)
		require.NotNil(t, got)
		assert.Equal(t, tc.want, *got)
	}
}

func TestConvert(t *testing.T) {
	v, err := Convert("42", "int")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = Convert("2024-03-01", "datetime")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), v)

	v, err = Convert("", "int")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Convert("", "string")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	_, err = Convert("x", "int")
	assert.Error(t, err)
	_, err = Convert("x", "blob")
	assert.Error(t, err)
}
