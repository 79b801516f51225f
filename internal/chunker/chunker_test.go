package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func Test_Split_KnownOffsets(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 1200)

	chunks, err := Split(text, "doc.md", 500, 100)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	want := []struct{ offset, length int }{{0, 500}, {400, 500}, {800, 400}}
	if len(chunks) != len(want) {
		t.Fatalf("want %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		c := chunks[i]
		if c.Offset != w.offset || len(c.Text) != w.length {
			t.Errorf("chunk %d: offset=%d len=%d, want offset=%d len=%d", i, c.Offset, len(c.Text), w.offset, w.length)
		}
		if c.Index != i {
			t.Errorf("chunk %d: index = %d", i, c.Index)
		}
		if c.Source != "doc.md" {
			t.Errorf("chunk %d: source = %q", i, c.Source)
		}
	}
}

func Test_Split_Empty(t *testing.T) {
	t.Parallel()
	chunks, err := Split("", "empty.txt", DefaultSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("want no chunks, got %d", len(chunks))
	}
}

func Test_Split_ShorterThanWindow(t *testing.T) {
	t.Parallel()
	chunks, err := Split("hello", "s.txt", DefaultSize, DefaultOverlap)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "hello" {
		t.Errorf("want single chunk %q, got %+v", "hello", chunks)
	}
}

func Test_Split_InvalidParams(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero overlap", 500, 0},
		{"negative overlap", 500, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 200},
		{"zero size", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Split("some text", "x", tc.size, tc.overlap)
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("want ErrInvalidParams, got %v", err)
			}
		})
	}
}

// Every rune of the input is covered, consecutive chunks share exactly
// overlap runes, and all chunks except the last are full windows.
func Test_Split_CoverageAndOverlap(t *testing.T) {
	t.Parallel()
	const size, overlap = 50, 10
	for n := 1; n <= 400; n++ {
		runes := make([]rune, n)
		for i := range runes {
			runes[i] = rune('a' + i%26)
		}
		text := string(runes)

		chunks, err := Split(text, "p", size, overlap)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}

		covered := 0
		for i, c := range chunks {
			l := utf8.RuneCountInString(c.Text)
			if i < len(chunks)-1 && l != size {
				t.Fatalf("n=%d chunk %d: len %d, want %d", n, i, l, size)
			}
			if c.Offset > covered {
				t.Fatalf("n=%d chunk %d: gap at %d", n, i, covered)
			}
			if i > 0 {
				prev := chunks[i-1]
				if got := prev.Offset + utf8.RuneCountInString(prev.Text) - c.Offset; got != overlap {
					t.Fatalf("n=%d chunk %d: overlap %d, want %d", n, i, got, overlap)
				}
			}
			if string(runes[c.Offset:c.Offset+l]) != c.Text {
				t.Fatalf("n=%d chunk %d: text does not match source window", n, i)
			}
			covered = c.Offset + l
		}
		if covered != n {
			t.Fatalf("n=%d: covered %d runes", n, covered)
		}
	}
}

func Test_Split_MultibyteBoundaries(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("é日", 300)

	chunks, err := Split(text, "u.md", 7, 3)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
	}
}
