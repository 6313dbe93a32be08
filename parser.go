package ucl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxRecursion bounds include nesting depth.
const maxRecursion = 16

type state uint8

const (
	stateInit state = iota
	stateKey
	stateValue
	stateAfterValue
	stateMacroName
	stateMacro
	stateError
)

// MacroHandler processes the argument of a `.name` directive. Handlers may
// feed more input into the parser, as the built-in include macro does.
type MacroHandler func(p *Parser, data []byte) error

// VariableHandler resolves a variable that is not registered on the parser.
// It reports false to leave the reference unexpanded.
type VariableHandler func(name string) (string, bool)

// Parser turns configuration text into a [Value] tree. Feed it input with
// the Add methods (several chunks may be added in sequence and are parsed
// as one document) and collect the result with [Parser.Object].
//
// A parser is single-threaded; it must not be shared between goroutines.
type Parser struct {
	state       state
	prevState   state
	top         *Value
	cur         *Value
	stack       []*Value
	chunks      []*chunk
	macros      map[string]MacroHandler
	vars        map[string]string
	varsHandler VariableHandler
	pubkeys     [][]byte
	fetch       Fetcher
	verify      Verifier
	macroName   string
	recursion   int
	err         error

	lowercaseKeys bool
	zeroCopy      bool
	noTime        bool
}

// Option configures a [Parser].
type Option func(*Parser)

// WithLowercaseKeys folds all keys to lower case and makes object key
// lookups ASCII case-insensitive.
func WithLowercaseKeys() Option {
	return func(p *Parser) {
		p.lowercaseKeys = true
	}
}

// WithZeroCopy lets string values and keys borrow the input buffer instead
// of copying. The resulting tree must not outlive the buffers handed to the
// Add methods.
func WithZeroCopy() Option {
	return func(p *Parser) {
		p.zeroCopy = true
	}
}

// WithNoTime disables time parsing; atoms with time suffixes lex as
// strings.
func WithNoTime() Option {
	return func(p *Parser) {
		p.noTime = true
	}
}

// WithFetcher replaces the URL fetcher used by the include macros.
func WithFetcher(f Fetcher) Option {
	return func(p *Parser) {
		p.fetch = f
	}
}

// WithVerifier installs the signature verifier used by the includes macro.
// Without one every `.includes` directive fails.
func WithVerifier(v Verifier) Option {
	return func(p *Parser) {
		p.verify = v
	}
}

// NewParser creates a parser with the `include` and `includes` macros
// registered.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		macros: make(map[string]MacroHandler),
		vars:   make(map[string]string),
		fetch:  defaultFetch,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.macros["include"] = includeHandler
	p.macros["includes"] = includesHandler

	return p
}

// RegisterMacro registers handler for `.name` directives, replacing any
// previous handler of the same name.
func (p *Parser) RegisterMacro(name string, handler MacroHandler) {
	p.macros[name] = handler
}

// RegisterVariable sets a `${name}` substitution value.
func (p *Parser) RegisterVariable(name, value string) {
	p.vars[name] = value
}

// SetVariablesHandler installs a fallback for variables that are not
// registered.
func (p *Parser) SetVariablesHandler(h VariableHandler) {
	p.varsHandler = h
}

// AddChunk parses one more chunk of input at priority zero.
func (p *Parser) AddChunk(data []byte) error {
	return p.addChunk(data, 0)
}

// AddChunkPriority parses one more chunk of input; every value produced
// from it carries the given merge priority, clamped to 0..15.
func (p *Parser) AddChunkPriority(data []byte, priority uint8) error {
	return p.addChunk(data, min(priority, MaxPriority))
}

// AddString parses a string of input.
func (p *Parser) AddString(text string) error {
	return p.addChunk([]byte(text), 0)
}

// AddFile reads and parses a file, setting the FILENAME and CURDIR
// variables from its resolved path.
func (p *Parser) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return p.failIO(fmt.Sprintf("cannot read file %s: %v", path, err))
	}

	if err := p.SetFilevars(path, true); err != nil {
		return err
	}

	return p.addChunk(data, 0)
}

// AddFD reads the remaining contents of an open file and parses them. The
// file is not closed.
func (p *Parser) AddFD(f *os.File) error {
	data, err := io.ReadAll(f)
	if err != nil {
		return p.failIO(fmt.Sprintf("cannot read fd %d: %v", f.Fd(), err))
	}

	return p.addChunk(data, 0)
}

// Object returns the parsed top-level value with a new strong reference, or
// nil when nothing has been parsed or the parser failed.
func (p *Parser) Object() *Value {
	if p.state == stateInit || p.state == stateError || p.top == nil {
		return nil
	}

	return p.top.Ref()
}

// Err returns the first error the parser reported, or nil.
func (p *Parser) Err() error {
	return p.err
}

// SetFilevars sets the FILENAME and CURDIR variables. An empty filename
// sets FILENAME to "undef" and CURDIR to the working directory; expand
// resolves the filename to an absolute path first.
func (p *Parser) SetFilevars(filename string, expand bool) error {
	if filename == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("%w: getwd: %w", ErrIO, err)
		}

		p.vars["FILENAME"] = "undef"
		p.vars["CURDIR"] = cwd

		return nil
	}

	if expand {
		abs, err := filepath.Abs(filename)
		if err != nil {
			return fmt.Errorf("%w: resolve %s: %w", ErrIO, filename, err)
		}

		filename = abs
	}

	dir := filepath.Dir(filename)
	if dir == "." {
		if cwd, err := os.Getwd(); err == nil {
			dir = cwd
		}
	}

	p.vars["FILENAME"] = filename
	p.vars["CURDIR"] = dir

	return nil
}

func (p *Parser) failIO(msg string) error {
	return p.setErr(p.topChunk(), ErrIO, msg)
}

func (p *Parser) topChunk() *chunk {
	if len(p.chunks) == 0 {
		return nil
	}

	return p.chunks[len(p.chunks)-1]
}

func (p *Parser) addChunk(data []byte, priority uint8) error {
	if p.state == stateError {
		return &ParseError{Kind: ErrState, Msg: "a parser is in an invalid state"}
	}

	ck := newChunk(data, priority)
	p.chunks = append(p.chunks, ck)

	p.recursion++
	if p.recursion > maxRecursion {
		p.recursion--

		return p.setErr(ck, ErrNested,
			fmt.Sprintf("maximum include nesting limit is reached: %d", maxRecursion))
	}

	err := p.run(ck)
	p.recursion--

	return err
}

// run drives the state machine over one chunk. The parser state persists
// across chunks so a document may be fed in pieces.
func (p *Parser) run(ck *chunk) error {
	for ck.remain() > 0 {
		switch p.state {
		case stateInit:
			if err := p.parseInit(ck); err != nil {
				return err
			}

		case stateKey:
			for ck.remain() > 0 && testChar(ck.cur(), charWhitespaceUnsafe) {
				ck.skip()
			}

			if ck.remain() == 0 {
				return nil
			}

			if ck.cur() == '}' {
				p.state = stateAfterValue

				continue
			}

			if err := p.parseKey(ck); err != nil {
				return err
			}

			if p.state != stateMacroName {
				p.state = stateValue
			}

		case stateValue:
			if err := p.parseValue(ck); err != nil {
				return err
			}

		case stateAfterValue:
			if err := p.parseAfterValue(ck); err != nil {
				return err
			}

			if len(p.stack) == 0 {
				// The top container closed; everything after it is ignored.
				return nil
			}

			if p.stack[len(p.stack)-1].typ == TypeObject {
				p.state = stateKey
			} else {
				p.state = stateValue
			}

		case stateMacroName:
			if err := p.parseMacroName(ck); err != nil {
				return err
			}

		case stateMacro:
			if err := p.parseMacro(ck); err != nil {
				return err
			}

		default:
			return p.setErr(ck, ErrInternal, "unknown parser state")
		}
	}

	return nil
}

// parseInit decides the top-level form: `[` opens an array, anything else
// opens an object with optional braces.
func (p *Parser) parseInit(ck *chunk) error {
	for ck.remain() > 0 && testChar(ck.cur(), charWhitespaceUnsafe) {
		ck.skip()
	}

	if err := p.skipComments(ck); err != nil {
		return err
	}

	for ck.remain() > 0 && testChar(ck.cur(), charWhitespaceUnsafe) {
		ck.skip()
	}

	if ck.remain() == 0 {
		return nil
	}

	var root *Value

	if ck.cur() == '[' {
		root = NewArray()
		p.state = stateValue

		ck.skip()
	} else {
		root = newObjectMode(p.lowercaseKeys)
		p.state = stateKey

		if ck.cur() == '{' {
			ck.skip()
		}
	}

	root.priority = ck.priority
	p.top = root
	p.cur = root
	p.stack = append(p.stack, root)

	return nil
}

// parseKey reads one object key plus its optional `=` or `:` separator and
// registers the member value in the enclosing object.
func (p *Parser) parseKey(ck *chunk) error {
	if ck.cur() == '.' {
		ck.skip()

		p.prevState = p.state
		p.state = stateMacroName

		return nil
	}

	start, end := -1, -1
	gotQuote, needUnescape := false, false

	for ck.remain() > 0 && end < 0 {
		c := ck.cur()

		var c2 byte
		if ck.remain() >= 2 {
			c2 = ck.at(1)
		}

		if start < 0 {
			switch {
			case isCommentStart(c, c2):
				if err := p.skipComments(ck); err != nil {
					return err
				}

				for ck.remain() > 0 && testChar(ck.cur(), charWhitespaceUnsafe) {
					ck.skip()
				}

			case isKeyStart(c):
				start = ck.pos

				ck.skip()

			case c == '"':
				ck.skip()

				start = ck.pos
				gotQuote = true

			default:
				return p.setErr(ck, ErrSyntax, "key must begin with a letter")
			}

			continue
		}

		if gotQuote {
			var err error

			needUnescape, err = p.lexJSONString(ck)
			if err != nil {
				return err
			}

			end = ck.pos - 1

			continue
		}

		switch {
		case testChar(c, charKey):
			ck.skip()
		case testChar(c, charKeySep):
			end = ck.pos
		default:
			return p.setErr(ck, ErrSyntax, "invalid character in a key")
		}
	}

	if end < 0 {
		return p.setErr(ck, ErrSyntax, "unfinished key")
	}

	if err := p.skipKeySeparator(ck); err != nil {
		return err
	}

	nobj := newValue(TypeNull)
	nobj.priority = ck.priority

	p.setKey(nobj, ck.data[start:end], needUnescape)

	container := p.stack[len(p.stack)-1]
	container.appendMember(nobj)

	p.cur = nobj

	return nil
}

// skipKeySeparator consumes whitespace, comments, and at most one `=` or
// `:` between a key and its value.
func (p *Parser) skipKeySeparator(ck *chunk) error {
	gotSep := false

	for ck.remain() > 0 {
		c := ck.cur()

		var c2 byte
		if ck.remain() >= 2 {
			c2 = ck.at(1)
		}

		switch {
		case testChar(c, charWhitespace):
			ck.skip()

		case c == '=':
			if gotSep {
				return p.setErr(ck, ErrSyntax, "unexpected '=' character")
			}

			gotSep = true

			ck.skip()

		case c == ':':
			if gotSep {
				return p.setErr(ck, ErrSyntax, "unexpected ':' character")
			}

			gotSep = true

			ck.skip()

		case isCommentStart(c, c2):
			if err := p.skipComments(ck); err != nil {
				return err
			}

		default:
			return nil
		}
	}

	return p.setErr(ck, ErrSyntax, "unfinished key")
}

// setKey stores the key bytes on v, applying unescaping, case folding, and
// the ownership rules of the zero-copy mode.
func (p *Parser) setKey(v *Value, key []byte, needUnescape bool) {
	if needUnescape {
		key = unescapeJSON(key)
	}

	switch {
	case p.lowercaseKeys:
		v.key = []byte(foldASCII(key))
		v.flags |= FlagKeyOwned

	case needUnescape:
		v.key = key
		v.flags |= FlagKeyOwned

	case p.zeroCopy:
		v.key = key

	default:
		v.key = append([]byte(nil), key...)
		v.flags |= FlagKeyOwned
	}

	for _, c := range v.key {
		if !testChar(c, charKey) {
			v.flags |= FlagKeyNeedsEscape

			break
		}
	}
}

// claimValue returns the value the next token fills: a fresh array element,
// or the member created when its key was parsed.
func (p *Parser) claimValue(ck *chunk, top *Value) *Value {
	if top.typ == TypeArray {
		v := newValue(TypeNull)
		v.priority = ck.priority
		top.av = append(top.av, v)
		p.cur = v

		return v
	}

	return p.cur
}

// parseValue reads one value token and routes containers onto the stack.
func (p *Parser) parseValue(ck *chunk) error {
	for ck.remain() > 0 {
		c := ck.cur()

		if testChar(c, charWhitespaceUnsafe) {
			ck.skip()

			continue
		}

		var c2 byte
		if ck.remain() >= 2 {
			c2 = ck.at(1)
		}

		if isCommentStart(c, c2) {
			if err := p.skipComments(ck); err != nil {
				return err
			}

			continue
		}

		break
	}

	if ck.remain() == 0 {
		return nil
	}

	top := p.stack[len(p.stack)-1]
	c := ck.cur()

	if c == ']' && top.typ == TypeArray {
		// Empty array or trailing separator; after-value pops the frame.
		p.state = stateAfterValue

		return nil
	}

	v := p.claimValue(ck, top)

	switch c {
	case '"':
		ck.skip()

		start := ck.pos

		needUnescape, err := p.lexJSONString(ck)
		if err != nil {
			return err
		}

		p.setString(v, ck.data[start:ck.pos-1], needUnescape, false)
		p.state = stateAfterValue

		return nil

	case '{':
		v.typ = TypeObject
		v.ov = newOmap(p.lowercaseKeys)

		p.stack = append(p.stack, v)
		p.state = stateKey

		ck.skip()

		return nil

	case '[':
		v.typ = TypeArray

		p.stack = append(p.stack, v)
		p.state = stateValue

		ck.skip()

		return nil

	case '<':
		if content, ok, err := p.tryHeredoc(ck); err != nil {
			return err
		} else if ok {
			p.setString(v, content, false, true)
			p.state = stateAfterValue

			return nil
		}
	}

	return p.parseAtom(ck, v)
}

// tryHeredoc attempts to lex `<<TAG\n ... \nTAG`. It reports ok=false
// without moving the cursor when the bytes at the cursor do not open a
// heredoc, letting the value fall back to a bare string.
func (p *Parser) tryHeredoc(ck *chunk) ([]byte, bool, error) {
	if ck.remain() <= 3 || ck.at(1) != '<' {
		return nil, false, nil
	}

	i := 2
	for ck.pos+i < len(ck.data) && ck.data[ck.pos+i] >= 'A' && ck.data[ck.pos+i] <= 'Z' {
		i++
	}

	if i == 2 || ck.pos+i >= len(ck.data) || ck.data[ck.pos+i] != '\n' {
		return nil, false, nil
	}

	term := ck.data[ck.pos+2 : ck.pos+i]
	ck.skipN(i + 1)

	content, ok := p.lexMultiline(ck, term)
	if !ok {
		return nil, false, p.setErr(ck, ErrSyntax, "unterminated multiline value")
	}

	return content, true, nil
}

// parseAtom reads a number, boolean word, or bare string.
func (p *Parser) parseAtom(ck *chunk, v *Value) error {
	start := ck.pos

	if testChar(ck.cur(), charValueDigitStart) {
		ok, err := p.lexNumber(ck, v, false)
		if err != nil {
			return err
		}

		if ok {
			p.state = stateAfterValue

			return nil
		}
	}

	if err := p.lexBareString(ck); err != nil {
		return err
	}

	span := ck.data[start:ck.pos]

	if b, ok := maybeBoolean(span); ok {
		v.typ = TypeBoolean

		if b {
			v.iv = 1
		}

		p.state = stateAfterValue

		return nil
	}

	if foldASCII(span) == "null" {
		v.typ = TypeNull
		p.state = stateAfterValue

		return nil
	}

	for len(span) > 0 && testChar(span[len(span)-1], charWhitespace) {
		span = span[:len(span)-1]
	}

	if len(span) == 0 {
		return p.setErr(ck, ErrSyntax, "string value must not be empty")
	}

	p.setString(v, span, false, false)
	p.state = stateAfterValue

	return nil
}

// setString fills v with string content, honouring zero-copy borrowing.
func (p *Parser) setString(v *Value, content []byte, needUnescape, multiline bool) {
	v.typ = TypeString

	switch {
	case needUnescape:
		v.sv = unescapeJSON(content)
		v.flags |= FlagValueOwned

	case p.zeroCopy:
		v.sv = content

	default:
		v.sv = append([]byte(nil), content...)
		v.flags |= FlagValueOwned
	}

	if multiline {
		v.flags |= FlagMultiline
	}
}

// parseAfterValue consumes separators after a value and pops finished
// containers from the stack.
func (p *Parser) parseAfterValue(ck *chunk) error {
	gotSep := false

	for ck.remain() > 0 {
		c := ck.cur()

		var c2 byte
		if ck.remain() >= 2 {
			c2 = ck.at(1)
		}

		switch {
		case testChar(c, charWhitespace):
			ck.skip()

		case isCommentStart(c, c2):
			if err := p.skipComments(ck); err != nil {
				return err
			}

			// A comment counts as a separator.
			gotSep = true

		case c == '}' || c == ']':
			if len(p.stack) == 0 {
				return p.setErr(ck, ErrSyntax, "unexpected terminating symbol detected")
			}

			top := p.stack[len(p.stack)-1]
			if (c == '}' && top.typ != TypeObject) || (c == ']' && top.typ != TypeArray) {
				return p.setErr(ck, ErrSyntax, "unexpected terminating symbol detected")
			}

			p.stack = p.stack[:len(p.stack)-1]

			if len(p.stack) == 0 {
				return nil
			}

			ck.skip()

			gotSep = true

		case testChar(c, charValueEnd):
			gotSep = true

			ck.skip()

		default:
			if !gotSep {
				return p.setErr(ck, ErrSyntax, "delimiter is missing")
			}

			return nil
		}
	}

	return nil
}

// parseMacroName lexes the identifier after a leading dot and looks up its
// handler.
func (p *Parser) parseMacroName(ck *chunk) error {
	start := ck.pos

	for ck.remain() > 0 && testChar(ck.cur(), charKey) {
		ck.skip()
	}

	if ck.pos == start {
		return p.setErr(ck, ErrMacro, "invalid macro name")
	}

	name := string(ck.data[start:ck.pos])
	if _, ok := p.macros[name]; !ok {
		return p.setErr(ck, ErrMacro, "unknown macro")
	}

	p.macroName = name

	for ck.remain() > 0 {
		c := ck.cur()

		if testChar(c, charWhitespaceUnsafe) {
			ck.skip()

			continue
		}

		var c2 byte
		if ck.remain() >= 2 {
			c2 = ck.at(1)
		}

		if isCommentStart(c, c2) {
			if err := p.skipComments(ck); err != nil {
				return err
			}

			continue
		}

		break
	}

	p.state = stateMacro

	return nil
}

// parseMacro reads the macro argument and dispatches the handler.
func (p *Parser) parseMacro(ck *chunk) error {
	data, err := p.parseMacroValue(ck)
	if err != nil {
		return err
	}

	handler := p.macros[p.macroName]
	p.state = p.prevState

	if err := handler(p, data); err != nil {
		if p.err != nil {
			// A nested parse already recorded the failure.
			p.state = stateError

			return p.err
		}

		return p.setErr(ck, macroErrorKind(err), err.Error())
	}

	return nil
}

func macroErrorKind(err error) error {
	for _, kind := range []error{ErrIO, ErrSSL, ErrNested, ErrSyntax, ErrState} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return ErrMacro
}

// parseMacroValue reads a macro argument: a quoted string (with variable
// expansion), a `{ ... }` raw body, or a bare atom. Trailing whitespace and
// semicolons are consumed.
func (p *Parser) parseMacroValue(ck *chunk) ([]byte, error) {
	var data []byte

	switch ck.cur() {
	case '"':
		ck.skip()

		start := ck.pos

		needUnescape, err := p.lexJSONString(ck)
		if err != nil {
			return nil, err
		}

		data = ck.data[start : ck.pos-1]
		if needUnescape {
			data = unescapeJSON(data)
		}

		data = p.expandVariables(data)

	case '{':
		ck.skip()

		for ck.remain() > 0 && testChar(ck.cur(), charWhitespaceUnsafe) {
			ck.skip()
		}

		start := ck.pos

		for ck.remain() > 0 && ck.cur() != '}' {
			ck.skip()
		}

		if ck.remain() == 0 {
			return nil, p.setErr(ck, ErrSyntax, "unfinished macro body")
		}

		data = ck.data[start:ck.pos]

		ck.skip()

	default:
		start := ck.pos

		for ck.remain() > 0 && !isAtomEnd(ck.cur()) {
			ck.skip()
		}

		data = ck.data[start:ck.pos]
	}

	for ck.remain() > 0 && (testChar(ck.cur(), charWhitespaceUnsafe) || ck.cur() == ';') {
		ck.skip()
	}

	return data, nil
}
