package sanitize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestForSpreadsheet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"=SUM(A1:A10)", "'=SUM(A1:A10)"},
		{"+cmd|'/C calc'!A0", "'+cmd|'/C calc'!A0"},
		{"-2+3", "'-2+3"},
		{"@SUM(1)", "'@SUM(1)"},
		{"  =1+1", "'  =1+1"},
		{"\t=1", "'\t=1"},
		{"\n@x", "'\n@x"},
		{"normal text", "normal text"},
		{"a=b", "a=b"},
		{"", ""},
		{"   ", "   "},
		{"张三", "张三"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ForSpreadsheet(tt.in), "%q", tt.in)
		assert.Equal(t, tt.in == tt.want, IsSafe(tt.in), "%q", tt.in)
	}
}

func TestRow(t *testing.T) {
	got := Row([]string{"E001", "=HYPERLINK(\"x\")", "Finance"})
	assert.Equal(t, []string{"E001", "'=HYPERLINK(\"x\")", "Finance"}, got)
}

func TestMap_Nested(t *testing.T) {
	in := map[string]any{
		"name":   "=cmd",
		"salary": 12000,
		"tags":   []string{"+a", "b"},
		"nested": map[string]any{"note": "@x", "list": []any{"-1", 2}},
	}
	want := map[string]any{
		"name":   "'=cmd",
		"salary": 12000,
		"tags":   []string{"'+a", "b"},
		"nested": map[string]any{"note": "'@x", "list": []any{"'-1", 2}},
	}

	if diff := cmp.Diff(want, Map(in)); diff != "" {
		t.Fatalf("Map mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "=cmd", in["name"], "input is not modified")
	assert.Nil(t, Map(nil))
}

func TestRemoveControlChars(t *testing.T) {
	assert.Equal(t, "ab\tc\nd\re", RemoveControlChars("a\x00b\tc\nd\re\x1f"))
	assert.Equal(t, "plain", RemoveControlChars("plain"))
}
