package directory

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitDelimited(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "plain fields",
			line: "a,b,c",
			want: []string{"a", "b", "c"},
		},
		{
			name: "quoted field keeps its comma",
			line: `"Smith, John",10,mg`,
			want: []string{"Smith, John", "10", "mg"},
		},
		{
			name: "fields are trimmed",
			line: " a , b ,c ",
			want: []string{"a", "b", "c"},
		},
		{
			name: "empty middle field",
			line: "a,,c",
			want: []string{"a", "", "c"},
		},
		{
			name: "trailing empty field",
			line: "a,b,",
			want: []string{"a", "b", ""},
		},
		{
			name: "unterminated quote swallows the rest",
			line: `"a,b,c`,
			want: []string{"a,b,c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitDelimited(tt.line, ',')
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitDelimited(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

const sampleData = `name,address,city,state,zip,phone,type,county,emergency
Mass General,55 Fruit St,Boston,MA,02114,617-726-2000,Acute Care,Suffolk,Yes
Maine Medical,22 Bramhall St,Portland,me,04102,207-662-0111,Acute Care,Cumberland,Yes
Mount Sinai,1 Gustave Levy Pl,New York,NY,10029,212-241-6500,Acute Care,New York,Yes
Short Row,Somewhere

"Beth Israel, Deaconess",330 Brookline Ave,Boston,MA,02215,617-667-7000,Acute Care,Suffolk,Yes
`

func TestParse(t *testing.T) {
	loader := NewLoader(nil)

	hospitals, err := loader.Parse(strings.NewReader(sampleData))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// NY row, the short row and the blank line are all skipped.
	if len(hospitals) != 3 {
		t.Fatalf("got %d hospitals, want 3", len(hospitals))
	}

	// Sorted by name ascending.
	wantNames := []string{"Beth Israel, Deaconess", "Maine Medical", "Mass General"}
	for i, want := range wantNames {
		if hospitals[i].Name != want {
			t.Errorf("position %d: got %q, want %q", i, hospitals[i].Name, want)
		}
	}

	// Region codes are normalized to upper case.
	for _, h := range hospitals {
		if h.Name == "Maine Medical" && h.State != "ME" {
			t.Errorf("state = %q, want ME", h.State)
		}
	}

	// Optional columns land when present.
	if hospitals[2].County != "Suffolk" || hospitals[2].EmergencyServices != "Yes" {
		t.Errorf("optional columns not parsed: %+v", hospitals[2])
	}

	// Searchable text is prebuilt.
	for _, h := range hospitals {
		if h.Searchable == "" {
			t.Errorf("hospital %q has no searchable text", h.Name)
		}
	}
}

func TestParseSynthesizesOrdinalIDs(t *testing.T) {
	loader := NewLoader(nil)

	hospitals, err := loader.Parse(strings.NewReader(sampleData))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, h := range hospitals {
		if h.ProviderNumber == "" {
			t.Errorf("hospital %q has no provider number", h.Name)
		}
		if seen[h.ProviderNumber] {
			t.Errorf("duplicate provider number %q", h.ProviderNumber)
		}
		seen[h.ProviderNumber] = true
	}
}

func TestParseWithIDColumn(t *testing.T) {
	data := "name,address,city,state,zip,phone,type,county,emergency,provider\n" +
		"Mass General,55 Fruit St,Boston,MA,02114,617-726-2000,Acute Care,Suffolk,Yes,P100\n" +
		"Maine Medical,22 Bramhall St,Portland,ME,04102,207-662-0111,Acute Care,Cumberland,Yes,\n"

	loader := NewLoader(nil).WithIDColumn(9)
	hospitals, err := loader.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(hospitals) != 2 {
		t.Fatalf("got %d hospitals, want 2", len(hospitals))
	}

	// Sorted by name: Maine Medical first. Its id cell is empty, so it
	// falls back to an ordinal; Mass General takes its real identifier.
	if hospitals[1].ProviderNumber != "P100" {
		t.Errorf("provider number = %q, want P100", hospitals[1].ProviderNumber)
	}
	if hospitals[0].ProviderNumber == "" || hospitals[0].ProviderNumber == "P100" {
		t.Errorf("fallback provider number = %q", hospitals[0].ProviderNumber)
	}
}

func TestParseCustomRegions(t *testing.T) {
	loader := NewLoader([]string{"ny"})

	hospitals, err := loader.Parse(strings.NewReader(sampleData))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if len(hospitals) != 1 || hospitals[0].Name != "Mount Sinai" {
		t.Fatalf("region override not applied: %+v", hospitals)
	}
}

func TestParseHeaderOnly(t *testing.T) {
	loader := NewLoader(nil)

	hospitals, err := loader.Parse(strings.NewReader("name,address,city,state,zip,phone,type\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(hospitals) != 0 {
		t.Errorf("got %d hospitals from a header-only file", len(hospitals))
	}
}

func TestSeedHospitals(t *testing.T) {
	seed := SeedHospitals()
	if len(seed) == 0 {
		t.Fatal("seed dataset is empty")
	}

	allowed := make(map[string]bool)
	for _, r := range DefaultRegions {
		allowed[r] = true
	}

	for i, h := range seed {
		if !allowed[h.State] {
			t.Errorf("seed hospital %q is outside the default regions: %s", h.Name, h.State)
		}
		if h.ProviderNumber == "" || h.Searchable == "" {
			t.Errorf("seed hospital %q is incomplete", h.Name)
		}
		if i > 0 && seed[i-1].Name > h.Name {
			t.Errorf("seed not sorted by name at %q", h.Name)
		}
	}
}
