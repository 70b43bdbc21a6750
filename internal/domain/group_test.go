package domain

import "testing"

func TestGroupNamesAreDeterministic(t *testing.T) {
	if got := ReaderGroupName("Platform Core Team"); got != "perm-item-reader-platform-core-team" {
		t.Fatalf("reader name = %q", got)
	}
	if got := WriterGroupName("Platform Core Team"); got != "perm-item-writer-platform-core-team" {
		t.Fatalf("writer name = %q", got)
	}
	if got := ContributorGroupName("Platform Core Team"); got != "role-external-contributor-platform-core-team" {
		t.Fatalf("contributor name = %q", got)
	}
}

func TestGroupSlugCollapsesWhitespace(t *testing.T) {
	if got := GroupSlug("  Alpha   Bravo "); got != "alpha-bravo" {
		t.Fatalf("slug = %q", got)
	}
}

func TestWriteCapabilityCombinesBits(t *testing.T) {
	if CapabilityWrite != CapabilityEdit|CapabilityEditComments {
		t.Fatalf("write capability = %d", CapabilityWrite)
	}
	if CapabilityWrite != 544 {
		t.Fatalf("write capability = %d, want 544", CapabilityWrite)
	}
}
