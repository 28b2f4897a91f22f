package main

import (
	"strings"
	"testing"
)

func TestReadPassword(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "argument", args: []string{"Admin@123"}, want: "Admin@123"},
		{name: "argument wins over stdin", args: []string{"a"}, stdin: "b\n", want: "a"},
		{name: "stdin line", stdin: "s3cret pass\n", want: "s3cret pass"},
		{name: "stdin without newline", stdin: "s3cret", want: "s3cret"},
		{name: "crlf", stdin: "s3cret\r\n", want: "s3cret"},
		{name: "empty argument", args: []string{""}, wantErr: true},
		{name: "nothing", stdin: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPassword(tt.args, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("readPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readPassword() = %q, want %q", got, tt.want)
			}
		})
	}
}
