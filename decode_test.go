package recjson

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUnmarshal(t *testing.T) {
	cases := []unmarshalTestCase{
		{label: "empty object", input: `{}`, output: `{}`},
		{label: "white space", input: "  {\n\t\"a\" : 1 }\r\n", output: `{"a":1}`},
		{label: "UTF-8 BOM", input: "\xef\xbb\xbf{}", output: `{}`},
		{label: "simple", input: `{"a": 1, "b": "foo"}`, output: `{"a":1,"b":"foo"}`},
		{label: "bool and null", input: `{"t": true, "f": false, "n": null}`, output: `{"t":true,"f":false,"n":null}`},
		{label: "int32 min", input: `{"a": -2147483648}`, output: `{"a":-2147483648}`},
		{label: "int64", input: `{"a": 2147483648}`, output: `{"a":2147483648,"@fieldTypes":{"a":"l"}}`},
		{label: "double", input: `{"a": 1.5}`, output: `{"a":1.5}`},
		{label: "exponent", input: `{"a": 1e3}`, output: `{"a":1000.0}`},
		{label: "scientific notation", input: `{"a": -9.2741500e-31}`, output: `{"a":-9.27415e-31}`},
		{label: "float hint", input: `{"a": 3, "@fieldTypes": {"a": "f"}}`, output: `{"a":3.0,"@fieldTypes":{"a":"f"}}`},
		{label: "hints before fields", input: `{"@fieldTypes": {"a": "l"}, "a": 3}`, output: `{"a":3,"@fieldTypes":{"a":"l"}}`},
		{
			label:  "legacy fieldTypes",
			input:  `{"@fieldTypes":"a=l,b=f","a":1,"b":2.5}`,
			output: `{"a":1,"b":2.5,"@fieldTypes":{"a":"l","b":"f"}}`,
		},
		{label: "short and byte", input: `{"b":7,"s":300,"@fieldTypes":{"b":"b","s":"s"}}`, output: `{"b":7,"s":300,"@fieldTypes":{"b":"b","s":"s"}}`},
		{label: "signed byte", input: `{"b":-5,"@fieldTypes":{"b":"b"}}`, output: `{"b":-5,"@fieldTypes":{"b":"b"}}`},
		{label: "unsigned byte", input: `{"b":251,"@fieldTypes":{"b":"b"}}`, output: `{"b":-5,"@fieldTypes":{"b":"b"}}`},
		{label: "decimal", input: `{"c":"1.50","@fieldTypes":{"c":"c"}}`, output: `{"c":"1.50","@fieldTypes":{"c":"c"}}`},
		{label: "decimal from number", input: `{"c":2.25,"@fieldTypes":{"c":"c"}}`, output: `{"c":"2.25","@fieldTypes":{"c":"c"}}`},
		{label: "date", input: `{"d":"2020-03-04","@fieldTypes":{"d":"a"}}`, output: `{"d":"2020-03-04","@fieldTypes":{"d":"a"}}`},
		{
			label:  "datetime",
			input:  `{"t":"2020-03-04T05:06:07.089Z","@fieldTypes":{"t":"t"}}`,
			output: `{"t":"2020-03-04T05:06:07.089Z","@fieldTypes":{"t":"t"}}`,
		},
		{
			label:  "datetime from millis",
			input:  `{"t":1583298367089,"@fieldTypes":{"t":"t"}}`,
			output: `{"t":"2020-03-04T05:06:07.089Z","@fieldTypes":{"t":"t"}}`,
		},
		{
			label:  "datetime with offset",
			input:  `{"t":"2020-03-04T06:06:07.089+01:00","@fieldTypes":{"t":"t"}}`,
			output: `{"t":"2020-03-04T05:06:07.089Z","@fieldTypes":{"t":"t"}}`,
		},
		{label: "binary", input: `{"b":"AQID","@fieldTypes":{"b":"B"}}`, output: `{"b":"AQID","@fieldTypes":{"b":"B"}}`},
		{
			label:  "non-finite floats",
			input:  `{"f":"NaN","d":"-Infinity","@fieldTypes":{"f":"f","d":"d"}}`,
			output: `{"f":"NaN","d":"-Infinity","@fieldTypes":{"f":"f","d":"d"}}`,
		},
		{label: "sentinel without hint is a string", input: `{"s":"NaN"}`, output: `{"s":"NaN"}`},
		{label: "class", input: `{"@class":"Person","name":"x"}`, output: `{"@class":"Person","name":"x"}`},
		{
			label:  "embedded record",
			input:  `{"addr":{"@type":"d","@class":"Address","city":"Rome"}}`,
			output: `{"addr":{"@type":"d","@class":"Address","city":"Rome"}}`,
		},
		{
			label:  "embedded record with own hints",
			input:  `{"e":{"@type":"d","n":5,"@fieldTypes":{"n":"l"}}}`,
			output: `{"e":{"@type":"d","n":5,"@fieldTypes":{"n":"l"}}}`,
		},
		{label: "map", input: `{"m":{"a":1,"b":[true,null]}}`, output: `{"m":{"a":1,"b":[true,null]}}`},
		{label: "map with hints", input: `{"m":{"a":1,"@fieldTypes":{"a":"s"}}}`, output: `{"m":{"a":1,"@fieldTypes":{"a":"s"}}}`},
		{label: "null in list", input: `{"l":["string",null]}`, output: `{"l":["string",null]}`},
		{label: "nested lists", input: `{"l":[[1,2],[]]}`, output: `{"l":[[1,2],[]]}`},
		{label: "element hints", input: `{"l":[1,2],"@fieldTypes":{"l[1]":"l"}}`, output: `{"l":[1,2],"@fieldTypes":{"l[1]":"l"}}`},
		{label: "nested element hints", input: `{"l":[[1]],"@fieldTypes":{"l[0][0]":"b"}}`, output: `{"l":[[1]],"@fieldTypes":{"l[0][0]":"b"}}`},
		{label: "set", input: `{"s":[1,1,2],"@fieldTypes":{"s":"e"}}`, output: `{"s":[1,2],"@fieldTypes":{"s":"e"}}`},
		{label: "link", input: `{"l":"#12:3"}`, output: `{"l":"#12:3"}`},
		{label: "almost a link", input: `{"s":"#12:3x"}`, output: `{"s":"#12:3x"}`},
		{label: "link-shaped string", input: `{"s":"#12:3","@fieldTypes":{"s":"S"}}`, output: `{"s":"#12:3","@fieldTypes":{"s":"S"}}`},
		{label: "link list", input: `{"l":["#1:2","#1:3"]}`, output: `{"l":["#1:2","#1:3"],"@fieldTypes":{"l":"z"}}`},
		{label: "link set", input: `{"l":["#1:2","#1:2"],"@fieldTypes":{"l":"n"}}`, output: `{"l":["#1:2"],"@fieldTypes":{"l":"n"}}`},
		{label: "link bag", input: `{"g":["#1:2","#1:2"],"@fieldTypes":{"g":"g"}}`, output: `{"g":["#1:2","#1:2"],"@fieldTypes":{"g":"g"}}`},
		{label: "link map", input: `{"m":{"a":"#1:2"},"@fieldTypes":{"m":"y"}}`, output: `{"m":{"a":"#1:2"},"@fieldTypes":{"m":"y"}}`},
		{label: "unicode escape", input: `{"s":"caf\u00e9"}`, output: `{"s":"café"}`},
		{label: "surrogate pair", input: `{"s":"\ud83d\ude00"}`, output: "{\"s\":\"\U0001F600\"}"},
		{label: "escaped quotes", input: `{"s":"\"\",\"oops\":\"123\""}`, output: `{"s":"\"\",\"oops\":\"123\""}`},
		{label: "escaped backslash at end", input: `{"s":"Suburban\\"}`, output: `{"s":"Suburban\\"}`},
		{label: "escaped backslash inside", input: `{"s":"Sub\\urban"}`, output: `{"s":"Sub\\urban"}`},
		{label: "backslash then quote", input: `{"s":"Suburban\\\""}`, output: `{"s":"Suburban\\\""}`},
		{label: "three escaped quotes", input: `{"s":"\"\"\""}`, output: `{"s":"\"\"\""}`},
		{label: "escaped solidus", input: `{"s":"a\/b"}`, output: `{"s":"a/b"}`},
		{label: "control escapes", input: `{"s":"\b\f\n\r\t\u0001"}`, output: `{"s":"\b\f\n\r\t\u0001"}`},
		{label: "unknown at-key is a field", input: `{"@foo":1}`, output: `{"@foo":1}`},

		{label: "unclosed", input: `{`, errStr: "expecting key or end of object"},
		{label: "byte too large", input: `{"b":256,"@fieldTypes":{"b":"b"}}`, errStr: `invalid byte "256"`},
		{label: "byte too small", input: `{"b":-129,"@fieldTypes":{"b":"b"}}`, errStr: `invalid byte "-129"`},
		{label: "unclosed nested", input: `{"foo":{}`, errStr: "expecting value-separator or end of object"},
		{label: "extra close", input: `{}}`, errStr: "unexpected content after root object"},
		{label: "close only", input: `}`, errStr: "root value must be an object"},
		{label: "double open", input: `{{}`, errStr: "expecting key or end of object"},
		{label: "array root", input: `[{}]`, errStr: "root value must be an object"},
		{label: "scalar root", input: `42`, errStr: "root value must be an object"},
		{label: "missing value", input: `{"a":}`, errStr: "expecting value"},
		{label: "missing colon", input: `{"a" 1}`, errStr: "expecting ':'"},
		{label: "number as key", input: `{"a":1,2:3}`, errStr: "expecting key"},
		{label: "trailing comma", input: `{"a":1,}`, errStr: "expecting key"},
		{label: "trailing comma in array", input: `{"a":[1,]}`, errStr: "expecting value"},
		{label: "duplicate key", input: `{"a":1,"a":2}`, errStr: "duplicate key"},
		{label: "unknown tag", input: `{"a":1,"@fieldTypes":{"a":"Q"}}`, errStr: "unknown type tag"},
		{label: "long tag", input: `{"a":1,"@fieldTypes":{"a":"ll"}}`, errStr: "must be a single character"},
		{label: "unknown record type", input: `{"@type":"q"}`, errStr: "unknown record type"},
		{label: "int out of range", input: `{"a":9223372036854775808}`, errStr: "int conversion"},
		{label: "bad number", input: `{"a":01}`, errStr: "invalid number"},
		{label: "single quotes", input: `{'a':1}`, errStr: "unexpected character"},
		{label: "unquoted key", input: `{a:1}`, errStr: "expecting key or end of object"},
		{label: "bare link", input: `{"a":#1:2}`, errStr: "unexpected character"},
		{label: "bad escape", input: `{"a":"\q"}`, errStr: "unknown escape"},
		{label: "bad unicode escape", input: `{"a":"\u12G4"}`, errStr: "invalid unicode escape"},
		{label: "unterminated string", input: `{"a":"abc}`, errStr: "unterminated string"},
		{label: "control character", input: "{\"a\":\"x\ny\"}", errStr: "control character in string"},
		{label: "invalid literal", input: `{"a":tru}`, errStr: "invalid literal"},
		{label: "bare NaN", input: `{"a":NaN}`, errStr: "invalid literal"},
		{label: "int hint with fraction", input: `{"a":1.5,"@fieldTypes":{"a":"i"}}`, errStr: "invalid 32-bit integer"},
		{label: "short overflow", input: `{"a":40000,"@fieldTypes":{"a":"s"}}`, errStr: "invalid 16-bit integer"},
		{label: "bad date", input: `{"a":"yesterday","@fieldTypes":{"a":"a"}}`, errStr: "invalid date"},
		{label: "bad base64", input: `{"a":"!!","@fieldTypes":{"a":"B"}}`, errStr: "invalid base64"},
		{label: "link tag on number", input: `{"a":5,"@fieldTypes":{"a":"x"}}`, errStr: "expecting record id"},
		{label: "list tag on object", input: `{"a":{},"@fieldTypes":{"a":"v"}}`, errStr: "cannot read object as type 'v'"},
		{label: "reserved key in map", input: `{"m":{"@rid":"#1:1"},"@fieldTypes":{"m":"m"}}`, errStr: "reserved key"},
		{label: "invalid link", input: `{"a":"#-1:-1"}`, errStr: "invalid link #-1:-1"},
		{label: "UTF-16 BOM", input: "\xfe\xff{}", errStr: "UTF-16"},
		{label: "UTF-32 BOM", input: "\x00\x00\xfe\xff{}", errStr: "UTF-32"},
	}

	testWithUnmarshal(t, cases, false)
}

func TestUnmarshalKinds(t *testing.T) {
	rec := NewRecord("")
	input := `{"i":1,"l":2147483648,"d":1.0,"f":1,"s":"x","n":null,"@fieldTypes":{"f":"f"}}`
	if err := Unmarshal([]byte(input), rec); err != nil {
		t.Fatal(err)
	}

	expect := map[string]Kind{
		"i": KindInt,
		"l": KindLong,
		"d": KindDouble,
		"f": KindFloat,
		"s": KindString,
		"n": KindNull,
	}
	for name, kind := range expect {
		if got := mustGet(t, rec, name).Kind(); got != kind {
			t.Errorf("field %s: expected %s, got %s", name, kind, got)
		}
	}
	if got := mustGet(t, rec, "f").Float(); got != 1 {
		t.Errorf("expected float 1, got %v", got)
	}
	if got := mustGet(t, rec, "l").Long(); got != 2147483648 {
		t.Errorf("expected long 2147483648, got %v", got)
	}
	if !rec.IsDirty() {
		t.Error("decoded record should be dirty")
	}
	if got := strings.Join(rec.Fields(), ","); got != "i,l,d,f,s,n" {
		t.Errorf("field order: got %s", got)
	}
}

func TestUnmarshalNonFinite(t *testing.T) {
	rec := NewRecord("")
	input := `{"a":"NaN","b":"Infinity","c":"-Infinity","@fieldTypes":{"a":"f","b":"f","c":"d"}}`
	if err := Unmarshal([]byte(input), rec); err != nil {
		t.Fatal(err)
	}
	if f := mustGet(t, rec, "a").Float(); f == f {
		t.Errorf("expected NaN, got %v", f)
	}
	if f := mustGet(t, rec, "b").Float(); !math.IsInf(float64(f), 1) {
		t.Errorf("expected +Inf, got %v", f)
	}
	if f := mustGet(t, rec, "c").Double(); !math.IsInf(f, -1) {
		t.Errorf("expected -Inf, got %v", f)
	}
}

func TestUnmarshalReplacesFields(t *testing.T) {
	rec := NewRecord("Old")
	mustSet(t, rec, "stale", Int(1))
	rec.SetIdentity(RID{Cluster: 3, Position: 4})

	if err := Unmarshal([]byte(`{"@rid":"#5:6","@class":"New","fresh":2}`), rec); err != nil {
		t.Fatal(err)
	}
	if rec.Has("stale") {
		t.Error("previous fields should be replaced")
	}
	if rec.Class() != "New" {
		t.Errorf("expected class New, got %q", rec.Class())
	}
	// The record already had an identity, so @rid doesn't replace it.
	if rec.Identity() != (RID{Cluster: 3, Position: 4}) {
		t.Errorf("identity changed to %v", rec.Identity())
	}

	fresh := NewRecord("")
	if err := Unmarshal([]byte(`{"@rid":"#5:6","@version":3}`), fresh); err != nil {
		t.Fatal(err)
	}
	if fresh.Identity() != (RID{Cluster: 5, Position: 6}) {
		t.Errorf("expected identity #5:6, got %v", fresh.Identity())
	}
	if fresh.Version() != 3 {
		t.Errorf("expected version 3, got %d", fresh.Version())
	}
}

func TestUnmarshalFailureLeavesRecord(t *testing.T) {
	rec := NewRecord("Keep")
	mustSet(t, rec, "a", String("before"))
	rec.ClearDirty()

	err := Unmarshal([]byte(`{"a":"after","b":{"c":1,"@fieldTypes":{"c":"?"}}}`), rec)
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if got := mustGet(t, rec, "a").Str(); got != "before" {
		t.Errorf("field changed to %q", got)
	}
	if rec.Len() != 1 || rec.IsDirty() {
		t.Errorf("record modified: %v", rec)
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	for _, input := range []string{"", "   \n"} {
		if err := Unmarshal([]byte(input), NewRecord("")); err != io.EOF {
			t.Errorf("input %q: expected io.EOF, got %v", input, err)
		}
	}
}

func TestMaxDepth(t *testing.T) {
	deep := strings.Repeat(`{"a":`, 10) + "1" + strings.Repeat("}", 10)

	d, err := NewDecoderBytes([]byte(deep))
	if err != nil {
		t.Fatal(err)
	}
	d.MaxDepth(10)
	if err := d.Decode(NewRecord("")); err != nil {
		t.Errorf("depth 10 should be allowed: %v", err)
	}

	d, err = NewDecoderBytes([]byte(deep))
	if err != nil {
		t.Fatal(err)
	}
	d.MaxDepth(9)
	err = d.Decode(NewRecord(""))
	if err == nil || !strings.Contains(err.Error(), "maximum depth 9 exceeded") {
		t.Errorf("expected depth error, got %v", err)
	}

	// The default bound protects against runaway nesting.
	hostile := "{\"a\":" + strings.Repeat("[", 100000)
	err = Unmarshal([]byte(hostile), NewRecord(""))
	if !errors.Is(err, ErrMalformedJSON) {
		t.Errorf("expected malformed json error, got %v", err)
	}
}

func TestLenient(t *testing.T) {
	cases := []struct {
		label  string
		input  string
		output string
	}{
		{"doubled quote is not an escape", `{'a':'it''s'}`, ``},
		{"single quoted with escape", `{'a':'it\'s'}`, `{"a":"it's"}`},
		{"unquoted keys", `{a:1, b_2:"x"}`, `{"a":1,"b_2":"x"}`},
		{"bare link", `{friend:#57:0}`, `{"friend":"#57:0"}`},
		{"trailing commas", `{"a":[1,2,],}`, `{"a":[1,2]}`},
	}

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			d, err := NewDecoderBytes([]byte(c.input))
			if err != nil {
				t.Fatal(err)
			}
			d.Lenient(true)
			rec := NewRecord("")
			err = d.Decode(rec)
			if c.output == "" {
				if err == nil {
					t.Fatalf("expected error, got %v", rec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := Marshal(rec, canonicalFormat)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != c.output {
				t.Errorf("got %s, expected %s", got, c.output)
			}
		})
	}

	// Lenient mode doesn't accept an object in key position either.
	d, err := NewDecoderBytes([]byte(`{{}`))
	if err != nil {
		t.Fatal(err)
	}
	d.Lenient(true)
	if err := d.Decode(NewRecord("")); err == nil {
		t.Error("expected error for {{}")
	}
}

func TestDecoderStream(t *testing.T) {
	inputs := []struct {
		label string
		input string
	}{
		{"white space separated", "{\"n\":1}\n{\"n\":2} {\"n\":3}"},
		{"array framed", `[{"n":1}, {"n":2},{"n":3}]`},
	}

	for _, c := range inputs {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			d, err := NewDecoder(strings.NewReader(c.input))
			if err != nil {
				t.Fatal(err)
			}
			var got []int32
			for {
				rec := NewRecord("")
				err := d.Decode(rec)
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, mustGet(t, rec, "n").Int())
			}
			if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
				t.Errorf("unexpected stream: %v", got)
			}
		})
	}
}

func TestDecoderStreamErrors(t *testing.T) {
	cases := []struct {
		label  string
		input  string
		errStr string
	}{
		{"unterminated array", `[{"n":1}`, "expecting value-separator or end of array"},
		{"array trailing comma", `[{"n":1},]`, "Decode only supports object decoding"},
		{"scalar in array", `[1]`, "Decode only supports object decoding"},
		{"content after array", `[{"n":1}] x`, "unexpected content after end of array"},
		{"object after empty array", `[] {}`, "unexpected content after end of array"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.label, func(t *testing.T) {
			t.Parallel()
			d, err := NewDecoderBytes([]byte(c.input))
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 3; i++ {
				err = d.Decode(NewRecord(""))
				if err != nil {
					break
				}
			}
			if err == nil || !strings.Contains(err.Error(), c.errStr) {
				t.Errorf("expected error with '%s', got %v", c.errStr, err)
			}
		})
	}

	d, err := NewDecoderBytes([]byte(`[]`))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Decode(NewRecord("")); err != io.EOF {
		t.Errorf("empty array: expected io.EOF, got %v", err)
	}
}

func TestCorpus(t *testing.T) {
	dir := filepath.Join("testdata", "corpus")

	for _, name := range getTestFiles(t, dir, "valid_", ".json") {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatal(err)
			}
			rec := NewRecord("")
			if err := Unmarshal(data, rec); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if got := roundTrip(t, rec, ""); !got.Equal(rec) {
				t.Errorf("round trip differs:\nGot:  %v\nWant: %v", got, rec)
			}
		})
	}

	for _, name := range getTestFiles(t, dir, "invalid_", ".json") {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				t.Fatal(err)
			}
			if err := Unmarshal(data, NewRecord("")); err == nil {
				t.Error("expected error")
			}
		})
	}
}
