package ucl

import (
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Fetcher loads the contents of a URL for the include macros. The default
// implementation performs a plain HTTP GET.
type Fetcher func(url string) ([]byte, error)

// Verifier checks a detached signature over fetched include data against a
// set of PEM-encoded public keys. No verifier is installed by default, so
// `.includes` directives fail unless the host supplies one.
type Verifier func(data, sig []byte, keys [][]byte) bool

func defaultFetch(url string) ([]byte, error) {
	resp, err := http.Get(url) //nolint:noctx // Include fetch blocks the caller by design.
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// AddPubkey registers a PEM-encoded public key for `.includes` signature
// checks.
func (p *Parser) AddPubkey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("%w: invalid PEM data", ErrSSL)
	}

	p.pubkeys = append(p.pubkeys, append([]byte(nil), pemBytes...))

	return nil
}

func includeHandler(p *Parser, data []byte) error {
	return p.includeArg(data, false)
}

func includesHandler(p *Parser, data []byte) error {
	return p.includeArg(data, true)
}

// includeArg loads the include target, optionally verifies its detached
// signature, and parses the fetched bytes as a nested chunk. Arguments
// beginning with `/` or `.` name filesystem paths; everything else is
// treated as a URL.
func (p *Parser) includeArg(data []byte, signed bool) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty include argument", ErrMacro)
	}

	target := string(data)
	isFile := data[0] == '/' || data[0] == '.'

	var (
		buf []byte
		err error
	)

	if isFile {
		target, err = filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("%w: cannot resolve %s: %v", ErrIO, string(data), err)
		}

		buf, err = os.ReadFile(target)
	} else {
		buf, err = p.fetch(target)
	}

	if err != nil {
		return fmt.Errorf("%w: cannot load %s: %v", ErrIO, target, err)
	}

	if signed {
		if err := p.checkSignature(target, isFile, buf); err != nil {
			return err
		}
	}

	if err := p.addChunk(buf, p.includePriority()); err != nil {
		return err
	}

	// The nested chunk is fully parsed; drop it from the stack so lexing
	// resumes in the enclosing chunk.
	p.chunks = p.chunks[:len(p.chunks)-1]

	return nil
}

func (p *Parser) checkSignature(target string, isFile bool, buf []byte) error {
	if p.verify == nil {
		return fmt.Errorf("%w: cannot check signatures without a verifier", ErrSSL)
	}

	if len(p.pubkeys) == 0 {
		return fmt.Errorf("%w: no public keys registered", ErrSSL)
	}

	var (
		sig []byte
		err error
	)

	if isFile {
		sig, err = os.ReadFile(target + ".sig")
	} else {
		sig, err = p.fetch(target + ".sig")
	}

	if err != nil {
		return fmt.Errorf("%w: cannot load signature for %s: %v", ErrSSL, target, err)
	}

	if !p.verify(buf, sig, p.pubkeys) {
		return fmt.Errorf("%w: cannot verify %s", ErrSSL, target)
	}

	return nil
}

// includePriority returns the priority of the chunk currently being lexed,
// inherited by included content.
func (p *Parser) includePriority() uint8 {
	if ck := p.topChunk(); ck != nil {
		return ck.priority
	}

	return 0
}
