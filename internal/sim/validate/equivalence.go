package validate

import (
	"fmt"

	"envforge.ai/internal/sim/logic/codec"
)

// CheckEquivalence confirms that decoding encoded under key yields target and
// that encoding target yields encoded. Both directions must hold: a lossy
// codec can satisfy one and not the other.
func CheckEquivalence(c codec.Codec, encoded string, key int, target string) error {
	plain, err := c.Decode(encoded, key)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if plain != target {
		return fmt.Errorf("%s decodes %q to %q, want %q", c.Name(), encoded, plain, target)
	}
	enc, err := c.Encode(target, key)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if enc != encoded {
		return fmt.Errorf("%s encodes %q to %q, want %q", c.Name(), target, enc, encoded)
	}
	return nil
}
