// Package codec holds the forward/backward mappings used by encode/decode
// puzzles. The generator and the solvability check share these so a level is
// verified with exactly the mapping that produced it.
package codec

import (
	"fmt"
	"sort"
	"strings"
)

const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type Codec interface {
	Name() string
	Encode(plain string, key int) (string, error)
	Decode(encoded string, key int) (string, error)
}

var registry = map[string]Codec{
	"caesar": caesar{},
	"atbash": atbash{},
}

func Lookup(name string) (Codec, bool) {
	c, ok := registry[name]
	return c, ok
}

func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// InAlphabet reports whether every rune of s is in charset.
func InAlphabet(s, charset string) bool {
	for _, r := range s {
		if !strings.ContainsRune(charset, r) {
			return false
		}
	}
	return true
}

func letterIndex(r rune) (int, error) {
	i := strings.IndexRune(Alphabet, r)
	if i < 0 {
		return 0, fmt.Errorf("codec: %q outside %s", r, Alphabet)
	}
	return i, nil
}

type caesar struct{}

func (caesar) Name() string { return "caesar" }

func (c caesar) Encode(plain string, key int) (string, error) {
	return c.shift(plain, key)
}

func (c caesar) Decode(encoded string, key int) (string, error) {
	return c.shift(encoded, -key)
}

func (caesar) shift(s string, by int) (string, error) {
	n := len(Alphabet)
	by = ((by % n) + n) % n
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		i, err := letterIndex(r)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[(i+by)%n])
	}
	return b.String(), nil
}

// atbash mirrors the alphabet; the key is ignored.
type atbash struct{}

func (atbash) Name() string { return "atbash" }

func (a atbash) Encode(plain string, _ int) (string, error) { return a.mirror(plain) }

func (a atbash) Decode(encoded string, _ int) (string, error) { return a.mirror(encoded) }

func (atbash) mirror(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		i, err := letterIndex(r)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[len(Alphabet)-1-i])
	}
	return b.String(), nil
}
