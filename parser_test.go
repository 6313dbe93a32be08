package ucl_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/ucl"
)

func TestBasicDocument(t *testing.T) {
	t.Parallel()

	root := parse(t, `a = 1; b = "x"; c { d = [1, 2, 3] }`)

	assert.Equal(t, 3, root.Len())
	assert.Equal(t, int64(1), root.Find("a").Int())
	assert.Equal(t, "x", root.Find("b").Str())

	d := root.LookupPath("c.d")
	require.NotNil(t, d)
	require.Equal(t, ucl.TypeArray, d.Type())
	require.Equal(t, 3, d.Len())

	for i := range 3 {
		assert.Equal(t, int64(i+1), d.At(i).Int())
	}
}

func TestJSONInput(t *testing.T) {
	t.Parallel()

	root := parse(t, `{"a":1,"b":"x","c":{"d":[1,2,3]},"e":null,"f":true}`)

	assert.Equal(t, int64(1), root.Find("a").Int())
	assert.Equal(t, "x", root.Find("b").Str())
	assert.Equal(t, ucl.TypeNull, root.Find("e").Type())
	assert.True(t, root.Find("f").Bool())
	assert.Equal(t, int64(3), root.LookupPath("c.d.2").Int())
}

func TestTopLevelArray(t *testing.T) {
	t.Parallel()

	root := parse(t, `[1, "two", {three = 3}]`)

	require.Equal(t, ucl.TypeArray, root.Type())
	require.Equal(t, 3, root.Len())
	assert.Equal(t, int64(1), root.At(0).Int())
	assert.Equal(t, "two", root.At(1).Str())
	assert.Equal(t, int64(3), root.At(2).Find("three").Int())
}

func TestSeparatorStyles(t *testing.T) {
	t.Parallel()

	tcs := map[string]string{
		"equals":        "a = 1; b = 2;",
		"colon":         "a: 1, b: 2,",
		"bare":          "a 1; b 2;",
		"newlines":      "a = 1\nb = 2\n",
		"braced":        "{ a = 1; b = 2; }",
		"trailing semi": "a = 1;; b = 2;",
	}

	for name, input := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := parse(t, input)
			assert.Equal(t, int64(1), root.Find("a").Int())
			assert.Equal(t, int64(2), root.Find("b").Int())
		})
	}
}

func TestInsertionOrder(t *testing.T) {
	t.Parallel()

	root := parse(t, "zeta = 1; alpha = 2; mid = 3; beta = 4;")

	var keys []string
	for m := range root.Each(false) {
		keys = append(keys, m.Key())
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid", "beta"}, keys)
}

func TestImplicitArray(t *testing.T) {
	t.Parallel()

	root := parse(t, "k = 1; k = 2; k = 3;")

	// Without expansion the key is visited once.
	count := 0
	for range root.Each(false) {
		count++
	}

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, root.Len())

	// With expansion every sibling appears in arrival order.
	var vals []int64
	for m := range root.Find("k").Each(true) {
		vals = append(vals, m.Int())
	}

	assert.Equal(t, []int64{1, 2, 3}, vals)
}

func TestImplicitArrayVsExplicitArray(t *testing.T) {
	t.Parallel()

	implicit := parse(t, "k = 1; k = 2;")
	explicit := parse(t, "k = [1, 2];")

	assert.Equal(t, ucl.TypeInt, implicit.Find("k").Type())
	assert.Equal(t, ucl.TypeArray, explicit.Find("k").Type())
}

func TestEmptyContainers(t *testing.T) {
	t.Parallel()

	root := parse(t, "obj = {}; arr = [];")

	require.Equal(t, ucl.TypeObject, root.Find("obj").Type())
	assert.Equal(t, 0, root.Find("obj").Len())
	require.Equal(t, ucl.TypeArray, root.Find("arr").Type())
	assert.Equal(t, 0, root.Find("arr").Len())
}

func TestTrailingSeparators(t *testing.T) {
	t.Parallel()

	root := parse(t, "a = [1, 2,]; b { c = 1; };")

	assert.Equal(t, 2, root.Find("a").Len())
	assert.Equal(t, int64(1), root.LookupPath("b.c").Int())
}

func TestQuotedKeys(t *testing.T) {
	t.Parallel()

	root := parse(t, `"key with spaces" = 1; "esc\nkey" = 2;`)

	assert.Equal(t, int64(1), root.Find("key with spaces").Int())
	assert.Equal(t, int64(2), root.Find("esc\nkey").Int())
}

func TestLowercaseKeys(t *testing.T) {
	t.Parallel()

	root := parse(t, "SeCtIoN { Value = 1 }", ucl.WithLowercaseKeys())

	sec := root.Find("section")
	require.NotNil(t, sec)
	assert.Equal(t, "section", sec.Key())
	assert.Equal(t, int64(1), sec.Find("value").Int())

	// Lookups are case-insensitive in this mode.
	assert.NotNil(t, root.Find("SECTION"))
}

func TestZeroCopyStrings(t *testing.T) {
	t.Parallel()

	buf := []byte("key = borrowed;")

	p := ucl.NewParser(ucl.WithZeroCopy())
	require.NoError(t, p.AddChunk(buf))

	root := p.Object()
	require.NotNil(t, root)

	v := root.Find("key")
	require.Equal(t, "borrowed", v.Str())

	// The string value aliases the input buffer.
	buf[6] = 'B'
	assert.Equal(t, "Borrowed", v.Str())
}

func TestMultiChunkInput(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	require.NoError(t, p.AddChunk([]byte("a = 1;\n")))
	require.NoError(t, p.AddChunk([]byte("b = 2;\n")))

	root := p.Object()
	require.NotNil(t, root)
	assert.Equal(t, int64(1), root.Find("a").Int())
	assert.Equal(t, int64(2), root.Find("b").Int())
}

func TestChunkPriorityStamping(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	require.NoError(t, p.AddChunkPriority([]byte("a = 1;\n"), 3))

	root := p.Object()
	require.NotNil(t, root)
	assert.Equal(t, uint8(3), root.Find("a").Priority())
}

func TestSyntaxErrors(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input string
		kind  error
	}{
		"bad key start": {
			input: "%bad = 1;",
			kind:  ucl.ErrSyntax,
		},
		"double equals": {
			input: "a == 1;",
			kind:  ucl.ErrSyntax,
		},
		"mixed separators": {
			input: "a =: 1;",
			kind:  ucl.ErrSyntax,
		},
		"missing delimiter": {
			input: "a = 1 b = 2;",
			kind:  ucl.ErrSyntax,
		},
		"mismatched close": {
			input: "a { b = 1; ]",
			kind:  ucl.ErrSyntax,
		},
		"unfinished key": {
			input: "a",
			kind:  ucl.ErrSyntax,
		},
		"unknown macro": {
			input: `.nonesuch "x"`,
			kind:  ucl.ErrMacro,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := ucl.NewParser()
			err := p.AddString(tc.input)
			require.Error(t, err)
			require.ErrorIs(t, err, tc.kind)

			var pe *ucl.ParseError
			require.ErrorAs(t, err, &pe)
			assert.NotZero(t, pe.Line)
			assert.NotEmpty(t, pe.Msg)
		})
	}
}

func TestErrorPosition(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	err := p.AddString("a = 1;\nb = \"unclosed\n")
	require.Error(t, err)

	var pe *ucl.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint(2), pe.Line)
}

func TestErrorStateIsSticky(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	require.Error(t, p.AddString("%bad = 1;"))
	require.ErrorIs(t, p.Err(), ucl.ErrSyntax)

	// Further input is rejected until the parser is discarded.
	err := p.AddString("good = 1;")
	require.ErrorIs(t, err, ucl.ErrState)
	assert.Nil(t, p.Object())
}

func TestIncludeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	included := filepath.Join(dir, "x.conf")
	require.NoError(t, os.WriteFile(included, []byte("y = 2;\n"), 0o644))

	root := parse(t, fmt.Sprintf("a = 1;\n.include \"%s\"\nb = 3;\n", included))

	assert.Equal(t, int64(1), root.Find("a").Int())
	assert.Equal(t, int64(2), root.Find("y").Int())
	assert.Equal(t, int64(3), root.Find("b").Int())

	// The included keys land between their neighbours.
	var keys []string
	for m := range root.Each(false) {
		keys = append(keys, m.Key())
	}

	assert.Equal(t, []string{"a", "y", "b"}, keys)
}

func TestIncludeIntoSection(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	included := filepath.Join(dir, "inner.conf")
	require.NoError(t, os.WriteFile(included, []byte("y = 2;\n"), 0o644))

	root := parse(t, fmt.Sprintf("outer {\n.include \"%s\"\n}\n", included))

	assert.Equal(t, int64(2), root.LookupPath("outer.y").Int())
}

func TestIncludeMissingFile(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	err := p.AddString(`.include "/nonexistent/path.conf"`)
	require.ErrorIs(t, err, ucl.ErrIO)
}

func TestIncludeRecursionCap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// A chain of includes deeper than the recursion ceiling.
	const depth = 20

	for i := range depth {
		var body string
		if i == depth-1 {
			body = "leaf = 1;\n"
		} else {
			body = fmt.Sprintf(".include \"%s\"\n", filepath.Join(dir, fmt.Sprintf("f%d.conf", i+1)))
		}

		path := filepath.Join(dir, fmt.Sprintf("f%d.conf", i))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	p := ucl.NewParser()
	err := p.AddFile(filepath.Join(dir, "f0.conf"))
	require.ErrorIs(t, err, ucl.ErrNested)
}

func TestIncludeURLFetcher(t *testing.T) {
	t.Parallel()

	fetched := map[string][]byte{
		"http://example.test/remote.conf": []byte("remote = true;\n"),
	}

	fetch := func(url string) ([]byte, error) {
		data, ok := fetched[url]
		if !ok {
			return nil, fmt.Errorf("not found: %s", url)
		}

		return data, nil
	}

	p := ucl.NewParser(ucl.WithFetcher(fetch))
	require.NoError(t, p.AddString(`.include "http://example.test/remote.conf"`))

	root := p.Object()
	require.NotNil(t, root)
	assert.True(t, root.Find("remote").Bool())
}

func TestIncludesRequiresVerifier(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	included := filepath.Join(dir, "signed.conf")
	require.NoError(t, os.WriteFile(included, []byte("y = 2;\n"), 0o644))

	p := ucl.NewParser()
	err := p.AddString(fmt.Sprintf(".includes \"%s\"\n", included))
	require.ErrorIs(t, err, ucl.ErrSSL)
}

func TestIncludesSignatureVerification(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	included := filepath.Join(dir, "signed.conf")
	require.NoError(t, os.WriteFile(included, []byte("y = 2;\n"), 0o644))
	require.NoError(t, os.WriteFile(included+".sig", []byte("sig"), 0o644))

	pemKey := []byte("-----BEGIN PUBLIC KEY-----\nQUJD\n-----END PUBLIC KEY-----\n")

	tcs := map[string]struct {
		verdict bool
		wantErr bool
	}{
		"valid signature":   {verdict: true},
		"invalid signature": {verdict: false, wantErr: true},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			verify := func(data, sig []byte, keys [][]byte) bool {
				assert.Equal(t, []byte("y = 2;\n"), data)
				assert.Equal(t, []byte("sig"), sig)
				assert.Len(t, keys, 1)

				return tc.verdict
			}

			p := ucl.NewParser(ucl.WithVerifier(verify))
			require.NoError(t, p.AddPubkey(pemKey))

			err := p.AddString(fmt.Sprintf(".includes \"%s\"\n", included))
			if tc.wantErr {
				require.ErrorIs(t, err, ucl.ErrSSL)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, int64(2), p.Object().Find("y").Int())
		})
	}
}

func TestAddPubkeyRejectsGarbage(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	require.ErrorIs(t, p.AddPubkey([]byte("not pem")), ucl.ErrSSL)
}

func TestCustomMacro(t *testing.T) {
	t.Parallel()

	var got []string

	p := ucl.NewParser()
	p.RegisterMacro("collect", func(_ *ucl.Parser, data []byte) error {
		got = append(got, string(data))

		return nil
	})

	input := ".collect \"quoted arg\"\n" +
		".collect { raw body }\n" +
		".collect bare-atom\n" +
		"a = 1;\n"

	require.NoError(t, p.AddString(input))

	assert.Equal(t, []string{"quoted arg", "raw body ", "bare-atom"}, got)
	assert.Equal(t, int64(1), p.Object().Find("a").Int())
}

func TestMacroHandlerFailure(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	p.RegisterMacro("boom", func(_ *ucl.Parser, _ []byte) error {
		return fmt.Errorf("handler exploded")
	})

	err := p.AddString(`.boom "x"`)
	require.ErrorIs(t, err, ucl.ErrMacro)
}

func TestVariableExpansion(t *testing.T) {
	t.Parallel()

	var got string

	p := ucl.NewParser()
	p.RegisterVariable("ROOT", "/etc/app")
	p.RegisterMacro("probe", func(_ *ucl.Parser, data []byte) error {
		got = string(data)

		return nil
	})

	require.NoError(t, p.AddString(`.probe "${ROOT}/main.conf"`))
	assert.Equal(t, "/etc/app/main.conf", got)
}

func TestVariablesHandler(t *testing.T) {
	t.Parallel()

	var got string

	p := ucl.NewParser()
	p.SetVariablesHandler(func(name string) (string, bool) {
		if name == "DYN" {
			return "resolved", true
		}

		return "", false
	})
	p.RegisterMacro("probe", func(_ *ucl.Parser, data []byte) error {
		got = string(data)

		return nil
	})

	require.NoError(t, p.AddString(`.probe "${DYN}-${UNKNOWN}"`))

	// Unresolved references stay as written.
	assert.Equal(t, "resolved-${UNKNOWN}", got)
}

func TestFilevars(t *testing.T) {
	t.Parallel()

	var got string

	p := ucl.NewParser()
	p.RegisterMacro("probe", func(_ *ucl.Parser, data []byte) error {
		got = string(data)

		return nil
	})

	require.NoError(t, p.SetFilevars("/etc/app/main.conf", false))
	require.NoError(t, p.AddString(`.probe "${FILENAME}:${CURDIR}"`))

	assert.Equal(t, "/etc/app/main.conf:/etc/app", got)
}

func TestFilevarsUndef(t *testing.T) {
	t.Parallel()

	var got string

	p := ucl.NewParser()
	p.RegisterMacro("probe", func(_ *ucl.Parser, data []byte) error {
		got = string(data)

		return nil
	})

	require.NoError(t, p.SetFilevars("", false))
	require.NoError(t, p.AddString(`.probe "${FILENAME}"`))

	assert.Equal(t, "undef", got)
}

func TestAddFileSetsFilevars(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "main.conf")
	require.NoError(t, os.WriteFile(path, []byte("a = 1;\n.include \"${CURDIR}/extra.conf\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.conf"), []byte("b = 2;\n"), 0o644))

	p := ucl.NewParser()
	require.NoError(t, p.AddFile(path))

	root := p.Object()
	require.NotNil(t, root)
	assert.Equal(t, int64(1), root.Find("a").Int())
	assert.Equal(t, int64(2), root.Find("b").Int())
}

func TestAddFD(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "fd.conf")
	require.NoError(t, os.WriteFile(path, []byte("a = 1;\n"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	p := ucl.NewParser()
	require.NoError(t, p.AddFD(f))
	assert.Equal(t, int64(1), p.Object().Find("a").Int())
}

func TestObjectBeforeParsing(t *testing.T) {
	t.Parallel()

	p := ucl.NewParser()
	assert.Nil(t, p.Object())

	require.NoError(t, p.AddString(""))
	assert.Nil(t, p.Object())
}
