/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmacro

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lines(a ...string) string {
	return strings.Join(a, "\n") + "\n"
}

var sampleCatalog = Catalog{maxMacro, piMacro}

type processTest struct {
	name   string
	input  string
	output string
}

var processTests = []processTest{
	{
		"empty",
		"",
		"",
	},
	{
		"main",
		lines(
			"int main() {",
			"    int x = 5, y = 10;",
			"    int max_val = MAX(x, y);",
			"    float circle_area = PI * x * x;",
			"    return 0;",
			"}",
		),
		lines(
			"int main() {",
			"    int x = 5, y = 10;",
			"    int max_val = ((x) > (y) ? (x) : (y));",
			"    float circle_area = 3.14159 * x * x;",
			"    return 0;",
			"}",
			"",
		),
	},
	{
		"several statements on one line",
		"a = PI; b = MAX(a, 2);\n",
		lines(
			"a = 3.14159;",
			"b = ((a) > (2) ? (a) : (2));",
		),
	},
	{
		"call site split over lines",
		lines(
			"m = MAX(x,",
			"        y);",
		),
		"m = ((x) > (y) ? (x) : (y));\n",
	},
	{
		"conditional directives neutralized",
		lines(
			"#ifdef USE_FULL_ASSERT",
			"  assert(x);",
			"#else /* no assert */",
			"  (void)x;",
			"#endif /* USE_FULL_ASSERT */",
		),
		lines(
			"//HC #ifdef USE_FULL_ASSERT",
			"  assert(x);",
			"//HC #else /* no assert */",
			"  (void)x;",
			"//HC #endif /* USE_FULL_ASSERT */",
			"",
		),
	},
	{
		"trailing blank lines dropped",
		lines("x = PI;", "", "  ", ""),
		"x = 3.14159;\n",
	},
	{
		"crlf input",
		"x = PI;\r\ny = 1;\r\n",
		lines("x = 3.14159;", "y = 1;"),
	},
	{
		"no trailing semicolon",
		"return PI",
		"return 3.14159\n\n",
	},
}

func TestProcess(t *testing.T) {
	eng := NewEngine(sampleCatalog, Options{})
	for _, tt := range processTests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if _, err := eng.Process(context.Background(), strings.NewReader(tt.input), &out); err != nil {
				t.Fatalf("Process: %v", err)
			}
			if diff := cmp.Diff(tt.output, out.String()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessStats(t *testing.T) {
	eng := NewEngine(sampleCatalog, Options{})
	var out bytes.Buffer
	st, err := eng.Process(context.Background(), strings.NewReader(processTests[1].input), &out)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff(Stats{Lines: 6, Statements: 5, Expanded: 2}, st); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessSentinel(t *testing.T) {
	eng := NewEngine(nil, Options{Sentinel: "/* off */ "})
	var out bytes.Buffer
	if _, err := eng.Process(context.Background(), strings.NewReader("#if X\nint a;\n"), &out); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff("/* off */ #if X\nint a;\n", out.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessStrict(t *testing.T) {
	eng := NewEngine(sampleCatalog, Options{Mode: ModeStrict})
	var out bytes.Buffer
	input := "int PIN = MAX(f(x), PI);\n"
	if _, err := eng.Process(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "int PIN = ((f(x)) > (3.14159) ? (f(x)) : (3.14159));\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessStrictAcrossComments(t *testing.T) {
	eng := NewEngine(sampleCatalog, Options{Mode: ModeStrict})
	input := lines(
		"#ifdef USE_X",
		"float a = PI * MAX(x, y);",
		"#endif",
		"b = 2; // note",
		"c = PI;",
	)
	want := lines(
		"//HC #ifdef USE_X",
		"float a = 3.14159 * ((x) > (y) ? (x) : (y));",
		"#endif",
		"b = 2;",
		"// note",
		"c = 3.14159;",
	)
	var out bytes.Buffer
	if _, err := eng.Process(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessLongLine(t *testing.T) {
	eng := NewEngine(sampleCatalog, Options{})
	long := "x = PI + " + strings.Repeat("a", 17<<20) + ";"
	var out bytes.Buffer
	st, err := eng.Process(context.Background(), strings.NewReader(long+"\n"), &out)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "x = 3.14159 + " + strings.Repeat("a", 17<<20) + ";\n"
	if out.String() != want {
		t.Errorf("long line: got %d bytes, want %d", out.Len(), len(want))
	}
	if st.Lines != 1 || st.Expanded != 1 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestProcessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := NewEngine(sampleCatalog, Options{})
	_, err := eng.Process(ctx, strings.NewReader("x = PI;\n"), &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestProcessWriteError(t *testing.T) {
	eng := NewEngine(sampleCatalog, Options{})
	_, err := eng.Process(context.Background(), strings.NewReader("x = PI;\n"), failingWriter{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected write error, got %v", err)
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "main.c")
	if err := os.WriteFile(in, []byte(processTests[1].input), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "output", "temp", "main.c")

	eng := NewEngine(sampleCatalog, Options{})
	for i := 0; i < 2; i++ {
		if _, err := eng.ProcessFile(context.Background(), in, out); err != nil {
			t.Fatalf("ProcessFile run %d: %v", i, err)
		}
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(processTests[1].output, string(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = eng.ProcessFile(context.Background(), filepath.Join(dir, "missing.c"), out)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
