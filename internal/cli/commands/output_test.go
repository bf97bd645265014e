package commands

import (
	"reflect"
	"testing"
)

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]interface{}
		wantErr bool
	}{
		{
			name: "typed values",
			args: []string{"name=Ann", "age=31", "score=9.5", "active=true", "nickname=null"},
			want: map[string]interface{}{
				"name": "Ann", "age": int64(31), "score": 9.5, "active": true, "nickname": nil,
			},
		},
		{
			name: "quoted number stays a string",
			args: []string{`zip="01234"`},
			want: map[string]interface{}{"zip": "01234"},
		},
		{
			name: "value containing equals",
			args: []string{"expr=a=b"},
			want: map[string]interface{}{"expr": "a=b"},
		},
		{
			name: "empty value",
			args: []string{"name="},
			want: map[string]interface{}{"name": ""},
		},
		{
			name: "objects are kept literal",
			args: []string{`meta={"a":1}`},
			want: map[string]interface{}{"meta": `{"a":1}`},
		},
		{
			name: "trailing text is kept literal",
			args: []string{"title=1 2"},
			want: map[string]interface{}{"title": "1 2"},
		},
		{name: "missing equals", args: []string{"name"}, wantErr: true},
		{name: "missing field", args: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssignments(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseAssignments(%v) = %#v; want %#v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseScalar(t *testing.T) {
	if v := parseScalar("42"); v != int64(42) {
		t.Errorf("expected int64 42, got %#v", v)
	}
	if v := parseScalar("abc"); v != "abc" {
		t.Errorf("expected string abc, got %#v", v)
	}
}

func TestColumns(t *testing.T) {
	rows := []map[string]interface{}{
		{"name": "Ann", "id": int64(1)},
		{"email": "bo@example.com", "id": int64(2)},
	}
	want := []string{"id", "email", "name"}
	if got := columns("id", rows); !reflect.DeepEqual(got, want) {
		t.Errorf("columns = %v; want %v", got, want)
	}
}
