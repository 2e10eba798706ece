package reference

import "testing"

func TestParseAuthor(t *testing.T) {
	tests := []struct {
		in   string
		want Author
	}{
		{"Smith, John", Author{First: "John", Last: "Smith"}},
		{"John Smith", Author{First: "John", Last: "Smith"}},
		{"Mary  Jane   Watson", Author{First: "Mary Jane", Last: "Watson"}},
		{"Vaswani, Ashish  ", Author{First: "Ashish", Last: "Vaswani"}},
		{"Plato", Author{Last: "Plato"}},
		{"", Author{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseAuthor(tt.in); got != tt.want {
				t.Errorf("ParseAuthor(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAuthor_String(t *testing.T) {
	a := Author{First: "Ada", Last: "Lovelace"}
	if got := a.String(); got != "Lovelace, Ada" {
		t.Errorf("String() = %q, want %q", got, "Lovelace, Ada")
	}
	if got := a.FullName(); got != "Ada Lovelace" {
		t.Errorf("FullName() = %q, want %q", got, "Ada Lovelace")
	}
	if got := (Author{Last: "Euclid"}).String(); got != "Euclid" {
		t.Errorf("String() = %q, want Euclid", got)
	}
}

func TestPaper_Key(t *testing.T) {
	tests := []struct {
		name  string
		paper Paper
		want  string
	}{
		{"doi wins", Paper{DOI: "10.1234/ABC", ArXivID: "1706.03762", Title: "X"}, "doi:10.1234/abc"},
		{"arxiv", Paper{ArXivID: "1706.03762", Title: "X"}, "arxiv:1706.03762"},
		{"title", Paper{Title: "Attention Is All You Need!"}, "title:attention-is-all-you-need"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.paper.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  BERT: Pre-training of Deep   Bidirectional Transformers "); got != "bert-pre-training-of-deep-bidirectional-transformers" {
		t.Errorf("NormalizeTitle() = %q", got)
	}
}
