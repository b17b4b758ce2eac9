package corruption

import (
	"context"
	"math"
	"math/rand"
	"unicode"

	"godrift/domain/core"
	"godrift/domain/corruption"
	"godrift/ports"
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// Corruptor applies seeded character-level noise to input text. All
// randomness flows through the RNG port so the same (text, spec) pair always
// produces the same output.
type Corruptor struct {
	rng ports.RNGPort
}

// NewCorruptor creates a corruption engine backed by the given RNG port.
func NewCorruptor(rng ports.RNGPort) *Corruptor {
	return &Corruptor{rng: rng}
}

// AuditReplay checks that the RNG port reproduces its own draws for the
// given seed before any corruption depends on it. A mismatch means the
// batch would not be replayable and has to stop up front.
func (c *Corruptor) AuditReplay(ctx context.Context, seed int64) error {
	stream, err := c.rng.SeededStream(ctx, "corruption", seed)
	if err != nil {
		return err
	}
	draws := make([]float64, 8)
	for i := range draws {
		draws[i] = stream.Float64()
	}
	return c.rng.ValidateSeed(ctx, "corruption", seed, draws)
}

// Corrupt applies the spec to the text. Whitespace structure is preserved:
// only non-whitespace characters are touched, deletions never remove spaces,
// and transpositions never swap across a token boundary. Intensity 0 returns
// the input unchanged.
func (c *Corruptor) Corrupt(ctx context.Context, text string, spec corruption.Spec) (*corruption.Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	counts := map[corruption.Operator]int{
		corruption.OpSubstitution:  0,
		corruption.OpDeletion:      0,
		corruption.OpTransposition: 0,
	}

	if spec.Intensity == 0 || text == "" {
		return &corruption.Result{
			Original:         text,
			Corrupted:        text,
			PositionsTouched: 0,
			OperatorCounts:   counts,
			Fingerprint:      core.NewFingerprint([]byte(text)),
		}, nil
	}

	stream, err := c.rng.SeededStream(ctx, "corruption", spec.Seed)
	if err != nil {
		return nil, err
	}

	runes := []rune(text)

	eligible := make([]int, 0, len(runes))
	for i, r := range runes {
		if !unicode.IsSpace(r) {
			eligible = append(eligible, i)
		}
	}

	k := int(math.Round(float64(len(runes)) * spec.Intensity / 100.0))
	if k > len(eligible) {
		k = len(eligible)
	}
	if k == 0 {
		return &corruption.Result{
			Original:         text,
			Corrupted:        text,
			PositionsTouched: 0,
			OperatorCounts:   counts,
			Fingerprint:      core.NewFingerprint([]byte(text)),
		}, nil
	}

	// Draw k target positions without replacement.
	perm := stream.Perm(len(eligible))
	targets := make([]int, k)
	for i := 0; i < k; i++ {
		targets[i] = eligible[perm[i]]
	}

	deleted := make(map[int]bool)
	for _, pos := range targets {
		op := drawOperator(stream)
		switch op {
		case corruption.OpDeletion:
			deleted[pos] = true
			counts[corruption.OpDeletion]++
		case corruption.OpTransposition:
			if swapWith, ok := transposePartner(runes, pos); ok {
				runes[pos], runes[swapWith] = runes[swapWith], runes[pos]
				counts[corruption.OpTransposition]++
			} else {
				// No in-token neighbour to swap with; substitute instead.
				runes[pos] = substitute(stream, runes[pos])
				counts[corruption.OpSubstitution]++
			}
		default:
			runes[pos] = substitute(stream, runes[pos])
			counts[corruption.OpSubstitution]++
		}
	}

	out := make([]rune, 0, len(runes))
	for i, r := range runes {
		if deleted[i] {
			continue
		}
		out = append(out, r)
	}

	corrupted := string(out)
	return &corruption.Result{
		Original:         text,
		Corrupted:        corrupted,
		PositionsTouched: k,
		OperatorCounts:   counts,
		Fingerprint:      core.NewFingerprint([]byte(corrupted)),
	}, nil
}

func drawOperator(stream *rand.Rand) corruption.Operator {
	r := stream.Float64()
	switch {
	case r < corruption.WeightSubstitution:
		return corruption.OpSubstitution
	case r < corruption.WeightSubstitution+corruption.WeightDeletion:
		return corruption.OpDeletion
	default:
		return corruption.OpTransposition
	}
}

// transposePartner finds an adjacent non-whitespace rune to swap with,
// preferring the right neighbour. Swapping across a space would move a
// character between tokens, so boundaries are never crossed.
func transposePartner(runes []rune, pos int) (int, bool) {
	if pos+1 < len(runes) && !unicode.IsSpace(runes[pos+1]) {
		return pos + 1, true
	}
	if pos-1 >= 0 && !unicode.IsSpace(runes[pos-1]) {
		return pos - 1, true
	}
	return 0, false
}

func substitute(stream *rand.Rand, original rune) rune {
	for {
		candidate := rune(letters[stream.Intn(len(letters))])
		if candidate != original {
			return candidate
		}
	}
}
