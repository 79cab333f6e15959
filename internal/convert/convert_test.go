package convert

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goldfish-inc/evalita-prep/internal/labels"
	"github.com/goldfish-inc/evalita-prep/internal/metrics"
	"github.com/goldfish-inc/evalita-prep/internal/table"
)

func newTestConverter(opts Options) (*Converter, *metrics.Recorder, *bytes.Buffer) {
	var buf bytes.Buffer
	rec := metrics.New()
	return New(opts, log.New(&buf, "", 0), rec), rec, &buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	var out []Record
	for _, line := range readLines(t, path) {
		var rec Record
		dec := json.NewDecoder(strings.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("line %q does not parse: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestHODIEndToEndExample(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "HODI_2023_train_subtaskA.tsv")
	writeFile(t, input, "id\ttext\thomotransphobic\n1\tciao\tFalse\n")
	output := filepath.Join(dir, "out", "HODI_2023_train_subtaskA.jsonl")

	c, _, _ := newTestConverter(Options{})
	summary, err := c.HODI(input, output)
	if err != nil {
		t.Fatalf("HODI: %v", err)
	}

	lines := readLines(t, output)
	want := `{"text":"ciao","choices":["Vero","Falso"],"label":1}`
	if len(lines) != 1 || lines[0] != want {
		t.Fatalf("lines = %q, want [%s]", lines, want)
	}
	if summary.Rows != 1 || summary.Records() != 1 {
		t.Errorf("summary rows=%d records=%d", summary.Rows, summary.Records())
	}
	if summary.LabelCounts[""]["Falso"] != 1 {
		t.Errorf("label counts = %v", summary.LabelCounts)
	}
}

func TestHODILabels(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "1", want: 0},
		{raw: "True", want: 0},
		{raw: "0", want: 1},
		{raw: "false", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "in.tsv")
			writeFile(t, input, "text\thomotransphobic\nx\t"+tt.raw+"\n")
			output := filepath.Join(dir, "out.jsonl")

			c, _, _ := newTestConverter(Options{})
			if _, err := c.HODI(input, output); err != nil {
				t.Fatal(err)
			}
			recs := readRecords(t, output)
			if recs[0].Label != tt.want {
				t.Errorf("label for %q = %d, want %d", tt.raw, recs[0].Label, tt.want)
			}
		})
	}
}

func TestHODIRejectsUnknownFlag(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.tsv")
	writeFile(t, input, "text\thomotransphobic\nx\tmaybe\n")

	c, _, _ := newTestConverter(Options{})
	if _, err := c.HODI(input, filepath.Join(dir, "out.jsonl")); err == nil {
		t.Fatal("expected error for unknown boolean")
	}
}

func TestHODIShuffledKeepsCorrectAnswer(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.tsv")
	var b strings.Builder
	b.WriteString("text\thomotransphobic\n")
	for i := range 40 {
		if i%2 == 0 {
			b.WriteString("sì\t1\n")
		} else {
			b.WriteString("no\t0\n")
		}
	}
	writeFile(t, input, b.String())
	output := filepath.Join(dir, "out.jsonl")

	shuffler := labels.NewShuffler(true, labels.SeededSource(49))
	c, _, logs := newTestConverter(Options{Shuffler: shuffler, Verbose: true, TraceRows: 12})
	if _, err := c.HODI(input, output); err != nil {
		t.Fatal(err)
	}

	recs := readRecords(t, output)
	if len(recs) != 40 {
		t.Fatalf("got %d records, want 40", len(recs))
	}
	for i, rec := range recs {
		want := "Falso"
		if i%2 == 0 {
			want = "Vero"
		}
		if got := rec.Choices[rec.Label]; got != want {
			t.Fatalf("record %d points at %q, want %q", i, got, want)
		}
	}
	if n := strings.Count(logs.String(), "Before shuffle"); n != 12 {
		t.Errorf("traced %d rows, want 12", n)
	}
}

func TestEmotivITAWritesThreeFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "Development set.csv")
	writeFile(t, input, "text,V,A,D\n"+
		"\"che bello, davvero\",4.5,3.2,1.0\n"+
		"noia <totale> & basta,2.0,3.8,3.79\n")

	outPath := func(dim string) string {
		return filepath.Join(dir, "EmotivITA_"+dim+"_dev.jsonl")
	}

	c, rec, _ := newTestConverter(Options{})
	summary, err := c.EmotivITA(input, outPath, labels.ThreeLevels)
	if err != nil {
		t.Fatalf("EmotivITA: %v", err)
	}
	if summary.Rows != 2 || summary.Records() != 6 {
		t.Fatalf("rows=%d records=%d, want 2 and 6", summary.Rows, summary.Records())
	}

	wantLabels := map[string][]string{
		"Valence":   {"Alta", "Bassa"},
		"Arousal":   {"Media", "Alta"},
		"Dominance": {"Bassa", "Media"},
	}
	for _, d := range Dimensions {
		recs := readRecords(t, outPath(d.Name))
		if len(recs) != 2 {
			t.Fatalf("%s: %d records", d.Name, len(recs))
		}
		for i, r := range recs {
			if r.Dimension != d.Name {
				t.Errorf("%s[%d].dimension = %q", d.Name, i, r.Dimension)
			}
			if !slices.Equal(r.Choices, []string{"Bassa", "Media", "Alta"}) {
				t.Errorf("%s[%d].choices = %v", d.Name, i, r.Choices)
			}
			if got := r.Choices[r.Label]; got != wantLabels[d.Name][i] {
				t.Errorf("%s[%d] = %q, want %q", d.Name, i, got, wantLabels[d.Name][i])
			}
		}
	}

	lines := readLines(t, outPath("Valence"))
	if !strings.Contains(lines[1], "noia <totale> & basta") {
		t.Errorf("text was escaped: %s", lines[1])
	}
	if n, err := testutil.GatherAndCount(rec.Registry(), "dataset_records_written_total"); err != nil || n != 3 {
		t.Errorf("records_written series = %d, %v, want 3", n, err)
	}
	if summary.Totals()["Alta"] != 2 {
		t.Errorf("totals = %v", summary.Totals())
	}
}

func TestEmotivITAFourLevelsShuffled(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "test.tsv")
	writeFile(t, input, "text\tV\tA\tD\nperché\t1.25\t2.5\t3.75\n")
	outPath := func(dim string) string { return filepath.Join(dir, dim+".jsonl") }

	c, _, _ := newTestConverter(Options{Shuffler: labels.NewShuffler(true, labels.SeededSource(3))})
	if _, err := c.EmotivITA(input, outPath, labels.FourLevels); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"Valence": "Media", "Arousal": "Alta", "Dominance": "Molto Alta"}
	for dim, label := range want {
		recs := readRecords(t, outPath(dim))
		r := recs[0]
		if r.Choices[r.Label] != label {
			t.Errorf("%s = %q, want %q", dim, r.Choices[r.Label], label)
		}
		if r.Text != "perché" {
			t.Errorf("text = %q", r.Text)
		}
		if len(r.Choices) != 4 {
			t.Errorf("choices = %v", r.Choices)
		}
		line := readLines(t, outPath(dim))[0]
		if !strings.Contains(line, `"text":"perché"`) || strings.Contains(line, `\u00e9`) {
			t.Errorf("%s: non-ASCII text not written literally: %s", dim, line)
		}
	}
}

func TestEmotivITARejectsBadScore(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	writeFile(t, input, "text,V,A,D\nx,abc,1,1\n")

	c, _, _ := newTestConverter(Options{})
	_, err := c.EmotivITA(input, func(d string) string { return filepath.Join(dir, d+".jsonl") }, labels.ThreeLevels)
	if err == nil || !strings.Contains(err.Error(), "row 1 column V") {
		t.Fatalf("error = %v", err)
	}

	writeFile(t, input, "text,V,A,D\nx,NaN,1,1\n")
	if _, err := c.EmotivITA(input, func(d string) string { return filepath.Join(dir, d+".jsonl") }, labels.ThreeLevels); err == nil {
		t.Fatal("expected error for NaN score")
	}
}

func TestUnsupportedExtensionFailsFast(t *testing.T) {
	dir := t.TempDir()
	c, _, logs := newTestConverter(Options{})

	_, err := c.HODI(filepath.Join(dir, "data.json"), filepath.Join(dir, "out.jsonl"))
	if !errors.Is(err, table.ErrUnsupportedExtension) {
		t.Fatalf("HODI error = %v, want ErrUnsupportedExtension", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.jsonl")); !os.IsNotExist(statErr) {
		t.Error("output created for unsupported input")
	}
	if !strings.Contains(logs.String(), "File extension: json") {
		t.Errorf("extension not logged: %q", logs.String())
	}

	_, err = c.EmotivITA(filepath.Join(dir, "data.xlsx"), func(d string) string { return d }, labels.ThreeLevels)
	if !errors.Is(err, table.ErrUnsupportedExtension) {
		t.Fatalf("EmotivITA error = %v, want ErrUnsupportedExtension", err)
	}
}

func TestMissingColumn(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	writeFile(t, input, "text,V,A\nx,1,1\n")

	c, _, _ := newTestConverter(Options{})
	_, err := c.EmotivITA(input, func(d string) string { return filepath.Join(dir, d+".jsonl") }, labels.ThreeLevels)
	if !errors.Is(err, table.ErrMissingColumn) {
		t.Fatalf("error = %v, want ErrMissingColumn", err)
	}
}

func TestNormalizeText(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.tsv")
	// decomposed "e" plus combining acute accent
	writeFile(t, input, "text\thomotransphobic\nperche\u0301\t0\n")

	c, _, _ := newTestConverter(Options{NormalizeText: true})
	output := filepath.Join(dir, "out.jsonl")
	if _, err := c.HODI(input, output); err != nil {
		t.Fatal(err)
	}
	if got := readRecords(t, output)[0].Text; got != "perch\u00e9" {
		t.Errorf("text = %q, want NFC form", got)
	}

	c, _, _ = newTestConverter(Options{})
	if _, err := c.HODI(input, output); err != nil {
		t.Fatal(err)
	}
	if got := readRecords(t, output)[0].Text; got != "perche\u0301" {
		t.Errorf("text = %q, want bytes unchanged", got)
	}
}

func TestLineSeparatorsWrittenLiterally(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.tsv")
	writeFile(t, input, "text\thomotransphobic\na\u2028b perché\u2029 c:\\u2028\t0\n")
	output := filepath.Join(dir, "out.jsonl")

	c, _, _ := newTestConverter(Options{})
	if _, err := c.HODI(input, output); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\"text\":\"a\u2028b perché\u2029 c:\\\\u2028\",\"choices\":[\"Vero\",\"Falso\"],\"label\":1}\n"
	if string(raw) != want {
		t.Errorf("output = %q\nwant     %q", raw, want)
	}
	if got := readRecords(t, output)[0].Text; got != "a\u2028b perché\u2029 c:\\u2028" {
		t.Errorf("round trip text = %q", got)
	}
}

func TestUnescapeSeparators(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: `{"text":"plain"}`, want: `{"text":"plain"}`},
		{in: `{"text":"a\u2028b"}`, want: "{\"text\":\"a\u2028b\"}"},
		{in: `{"text":"a\u2029b"}`, want: "{\"text\":\"a\u2029b\"}"},
		{in: `{"text":"a\\u2028b"}`, want: `{"text":"a\\u2028b"}`},
		{in: `{"text":"a\\\u2028b"}`, want: "{\"text\":\"a\\\\\u2028b\"}"},
		{in: `{"text":"\u202a"}`, want: `{"text":"\u202a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := string(unescapeSeparators([]byte(tt.in))); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInvalidUTF8TextIsRejected(t *testing.T) {
	dir := t.TempDir()

	hodiIn := filepath.Join(dir, "hodi.tsv")
	writeFile(t, hodiIn, "text\thomotransphobic\nok\t1\nbad\xffbyte\t0\n")
	c, _, _ := newTestConverter(Options{})
	_, err := c.HODI(hodiIn, filepath.Join(dir, "hodi.jsonl"))
	if err == nil || !strings.Contains(err.Error(), "row 2: text is not valid UTF-8") {
		t.Errorf("HODI error = %v", err)
	}

	emoIn := filepath.Join(dir, "emo.csv")
	writeFile(t, emoIn, "text,V,A,D\nbad\xffbyte,1,2,3\n")
	_, err = c.EmotivITA(emoIn, func(d string) string { return filepath.Join(dir, d+".jsonl") }, labels.ThreeLevels)
	if err == nil || !strings.Contains(err.Error(), "row 1: text is not valid UTF-8") {
		t.Errorf("EmotivITA error = %v", err)
	}
}

func TestConverterWithoutMetrics(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	writeFile(t, input, "text,V,A,D\nx,1,2,4\n")

	c := New(Options{}, log.New(io.Discard, "", 0), nil)
	if _, err := c.EmotivITA(input, func(d string) string { return filepath.Join(dir, d+".jsonl") }, labels.ThreeLevels); err != nil {
		t.Fatalf("EmotivITA: %v", err)
	}
	hodiIn := filepath.Join(dir, "in.tsv")
	writeFile(t, hodiIn, "text\thomotransphobic\nx\t1\n")
	if _, err := c.HODI(hodiIn, filepath.Join(dir, "hodi.jsonl")); err != nil {
		t.Fatalf("HODI: %v", err)
	}
}
