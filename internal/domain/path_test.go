package domain

import (
	"reflect"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`Alpha\Bravo`, `Alpha\Bravo`},
		{`Alpha/Bravo`, `Alpha\Bravo`},
		{`\Alpha\Bravo\`, `Alpha\Bravo`},
		{`/Shared/Infra`, `Shared\Infra`},
		{``, ``},
	}
	for _, tc := range cases {
		if got := NormalizePath(tc.in); got != tc.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJoinPathDropsEmptySegments(t *testing.T) {
	if got := JoinPath("", "Alpha", "", "Bravo"); got != `Alpha\Bravo` {
		t.Fatalf("JoinPath = %q", got)
	}
	if got := JoinPath(); got != "" {
		t.Fatalf("JoinPath() = %q, want empty", got)
	}
}

func TestSplitPath(t *testing.T) {
	if got := SplitPath(`Alpha\Bravo\Charlie`); !reflect.DeepEqual(got, []string{"Alpha", "Bravo", "Charlie"}) {
		t.Fatalf("SplitPath = %v", got)
	}
	if got := SplitPath(""); got != nil {
		t.Fatalf("SplitPath(empty) = %v, want nil", got)
	}
}

func TestIsStrictDescendant(t *testing.T) {
	cases := []struct {
		child, ancestor string
		want            bool
	}{
		{`Alpha\Bravo`, `Alpha`, true},
		{`Alpha\Bravo\Charlie`, `Alpha`, true},
		{`Alpha`, `Alpha`, false},
		{`Alphabet`, `Alpha`, false},
		{`Alpha`, `Alpha\Bravo`, false},
		{`Alpha\Bravo`, ``, false},
	}
	for _, tc := range cases {
		if got := IsStrictDescendant(tc.child, tc.ancestor); got != tc.want {
			t.Errorf("IsStrictDescendant(%q, %q) = %v, want %v", tc.child, tc.ancestor, got, tc.want)
		}
	}
}

func TestIsSpecAbsolute(t *testing.T) {
	if !IsSpecAbsolute(`Shared/Infra`) || !IsSpecAbsolute(`Shared\Infra`) {
		t.Fatal("specs with separators must be absolute")
	}
	if IsSpecAbsolute("Services") {
		t.Fatal("bare segment must be relative")
	}
}
