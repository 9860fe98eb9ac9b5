package prompt

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFill(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		inputs   []string
		want     string
	}{
		{
			name:     "slots",
			template: "Hello !<INPUT 0>!, meet !<INPUT 1>!. Bye !<INPUT 0>!.",
			inputs:   []string{"Isabella", "Klaus"},
			want:     "Hello Isabella, meet Klaus. Bye Isabella.",
		},
		{
			name:     "comment block dropped",
			template: "Variables:\n!<INPUT 0>! -- name\n" + CommentMarker + "\n\n  Name: !<INPUT 0>!  \n",
			inputs:   []string{"Maria"},
			want:     "Name: Maria",
		},
		{
			name:     "missing input left in place",
			template: "A !<INPUT 0>! B !<INPUT 1>!",
			inputs:   []string{"x"},
			want:     "A x B !<INPUT 1>!",
		},
		{
			name:     "double digit slot",
			template: "!<INPUT 1>!|!<INPUT 10>!",
			inputs:   []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "ten"},
			want:     "1|ten",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Fill(tc.template, tc.inputs...); got != tc.want {
				t.Errorf("Fill() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "greet.txt")
	if err := os.WriteFile(path, []byte("Hi !<INPUT 0>!\n"), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	got, err := Load(path, "there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hi there" {
		t.Errorf("Load() = %q", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing template")
	}
}
