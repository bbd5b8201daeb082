package colorize

import (
	"strings"
	"testing"

	"github.com/alecthomas/chroma/v2"
)

const listing = "gadget 00001002-0000100a anchor 00001008 len 2\n" +
	"00001002  71 10 00 00 02 00    invoke-static {v2}, LFoo;->bar(I)V\n" +
	"00001008  27 02                throw v2\n"

func TestDalvikLexer(t *testing.T) {
	it, err := Dalvik.Tokenise(nil, "00001002  1a 00 05 00          const-string v0, \"a b\"\n")
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]chroma.TokenType{}
	for _, tok := range it.Tokens() {
		got[tok.Value] = tok.Type
	}
	for value, want := range map[string]chroma.TokenType{
		"00001002":     chroma.NameLabel,
		"1a":           chroma.Comment,
		"const-string": chroma.Keyword,
		"v0":           chroma.NameVariable,
		`"a b"`:        chroma.String,
	} {
		if got[value] != want {
			t.Errorf("token %q = %v, want %v", value, got[value], want)
		}
	}
}

func TestListing(t *testing.T) {
	t.Setenv("TOPPER_NO_COLOR", "")
	out := Listing(listing)
	if !strings.Contains(out, "\x1b[") {
		t.Fatal("no escape sequences in colored output")
	}
	if StripANSI(out) != listing {
		t.Errorf("colored listing changed text:\n%q", StripANSI(out))
	}
}

func TestListingDisabled(t *testing.T) {
	t.Setenv("TOPPER_NO_COLOR", "1")
	if Enabled() {
		t.Fatal("Enabled with TOPPER_NO_COLOR set")
	}
	if out := Listing(listing); out != listing {
		t.Errorf("Listing changed text with color disabled: %q", out)
	}
}
